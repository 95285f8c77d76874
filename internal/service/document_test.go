package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/repository/mocks"
	"collaborative-canvas/internal/service"
)

// stringPtr 返回字符串指针，模拟数据库里的可空状态列。
func stringPtr(s string) *string { return &s }

// --- 测试 Fetch 方法 ---

func TestDocumentService_Fetch_ReturnsDecodedState(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	stored := []byte{0x01, 0x02, 0xff}

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", State: stringPtr(domain.EncodeState(stored))}, nil).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.Equal(t, stored, state)
	mockCanvasRepo.AssertExpectations(t)
}

func TestDocumentService_Fetch_AbsentCanvasReturnsNil(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindStateByID", ctx, "no-such-canvas").
		Return(nil, repository.ErrCanvasNotFound).Once()

	// Act
	state := docService.Fetch(ctx, "no-such-canvas")

	// Assert: 不存在的画布等同于没有历史状态
	assert.Nil(t, state)
}

func TestDocumentService_Fetch_QueryErrorReturnsNil(t *testing.T) {
	// Arrange: 数据库故障不能沿同步路径往上抛，引擎从空文档开始
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(nil, errors.New("db connection lost")).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.Nil(t, state)
}

func TestDocumentService_Fetch_NullStateColumnReturnsNil(t *testing.T) {
	// Arrange: 记录存在但从未保存过状态 (NULL 列)
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", State: nil}, nil).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.Nil(t, state)
}

func TestDocumentService_Fetch_MalformedStateReturnsNil(t *testing.T) {
	// Arrange: 前缀后跟着解析不了的内容，按缺失处理而不是报错
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", State: stringPtr(domain.StateEncodingPrefix + "not-hex!")}, nil).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.Nil(t, state)
}

func TestDocumentService_Fetch_EmptySavedStateIsNotNil(t *testing.T) {
	// Arrange: 保存过空状态和从未保存要区分开
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", State: stringPtr(domain.EncodeState([]byte{}))}, nil).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.NotNil(t, state, "保存过的空状态不应表现为缺失")
	assert.Len(t, state, 0)
}

// --- 测试 Store 方法 ---

func TestDocumentService_Store_NilStateIsNoop(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)

	// Act
	err := docService.Store(context.Background(), "canvas-1", nil, "user-1")

	// Assert: 没有状态可存，不应触达存储层
	assert.NoError(t, err)
	mockCanvasRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	mockCanvasRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockCanvasRepo.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_Store_ExistingCanvasUpdatesStateOnly(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	state := []byte("snapshot-v2")
	encoded := domain.EncodeState(state)

	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(true, nil).Once()
	// UpdateState 的签名只携带状态和更新时间，所有权不可能被这条路径改写
	mockCanvasRepo.On("UpdateState", ctx, "canvas-1", encoded, mock.AnythingOfType("time.Time")).
		Return(nil).Once()

	// Act
	err := docService.Store(ctx, "canvas-1", state, "another-user")

	// Assert
	assert.NoError(t, err)
	mockCanvasRepo.AssertExpectations(t)
	mockCanvasRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestDocumentService_Store_FirstSaveCreatesCanvas(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	canvasID := "3f8a12bc-dead-beef-0000-000000000000"
	state := []byte("first snapshot")
	encoded := domain.EncodeState(state)

	mockCanvasRepo.On("Exists", ctx, canvasID).Return(false, nil).Once()
	mockCanvasRepo.On("Insert", ctx, mock.MatchedBy(func(canvas *domain.Canvas) bool {
		return canvas.ID == canvasID &&
			canvas.Name == "Canvas 3f8a12bc" && // 缺省名称取 ID 前 8 位
			canvas.OwnerID == "user-1" &&
			canvas.State != nil && *canvas.State == encoded
	})).Return(nil).Once()

	// Act
	err := docService.Store(ctx, canvasID, state, "user-1")

	// Assert
	assert.NoError(t, err)
	mockCanvasRepo.AssertExpectations(t)
}

func TestDocumentService_Store_AnonymousFirstSaveIsNoop(t *testing.T) {
	// Arrange: 新画布 + 匿名会话 → 不创建记录
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(false, nil).Once()

	// Act
	err := docService.Store(ctx, "canvas-1", []byte("anon state"), "")

	// Assert
	assert.NoError(t, err)
	mockCanvasRepo.AssertExpectations(t)
	mockCanvasRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockCanvasRepo.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_Store_LostInsertRaceFallsBackToUpdate(t *testing.T) {
	// Arrange: 两条连接同时首次保存，输掉插入竞争的一方应改走更新，
	// 让最新状态落库，所有权留给先创建者
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	state := []byte("late snapshot")
	encoded := domain.EncodeState(state)

	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(false, nil).Once()
	mockCanvasRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Canvas")).
		Return(repository.ErrDuplicateEntry).Once()
	mockCanvasRepo.On("UpdateState", ctx, "canvas-1", encoded, mock.AnythingOfType("time.Time")).
		Return(nil).Once()

	// Act
	err := docService.Store(ctx, "canvas-1", state, "user-2")

	// Assert
	assert.NoError(t, err)
	mockCanvasRepo.AssertExpectations(t)
}

func TestDocumentService_Store_ExistenceCheckErrorPropagates(t *testing.T) {
	// Arrange: Store 的错误要返回给调用方，异步 worker 据此重试
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	dbErr := errors.New("db connection lost")

	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(false, dbErr).Once()

	// Act
	err := docService.Store(ctx, "canvas-1", []byte("state"), "user-1")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestDocumentService_Store_UpdateErrorPropagates(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	dbErr := errors.New("deadlock detected")

	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(true, nil).Once()
	mockCanvasRepo.On("UpdateState", ctx, "canvas-1", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(dbErr).Once()

	// Act
	err := docService.Store(ctx, "canvas-1", []byte("state"), "user-1")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

// --- Fetch/Store 往返 ---

func TestDocumentService_StoreThenFetchRoundTrip(t *testing.T) {
	// Arrange: Store 写出的编码值交给 Fetch 应还原出同样的字节
	mockCanvasRepo := new(mocks.CanvasRepository)
	docService := service.NewDocumentService(mockCanvasRepo)
	ctx := context.Background()
	original := []byte{0x00, 0x42, 0x99, 0xff}

	var persisted string
	mockCanvasRepo.On("Exists", ctx, "canvas-1").Return(true, nil).Once()
	mockCanvasRepo.On("UpdateState", ctx, "canvas-1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			persisted = args.String(2)
		}).
		Return(nil).Once()

	require.NoError(t, docService.Store(ctx, "canvas-1", original, "user-1"))

	mockCanvasRepo.On("FindStateByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", State: &persisted}, nil).Once()

	// Act
	state := docService.Fetch(ctx, "canvas-1")

	// Assert
	assert.Equal(t, original, state)
	mockCanvasRepo.AssertExpectations(t)
}
