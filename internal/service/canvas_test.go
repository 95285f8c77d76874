package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/repository/mocks"
	"collaborative-canvas/internal/service"
)

// --- 测试 Create 方法 ---

func TestCanvasService_Create_Success(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("Insert", ctx, mock.MatchedBy(func(canvas *domain.Canvas) bool {
		return canvas.ID != "" && canvas.Name == "My Sketch" && canvas.OwnerID == "user-1"
	})).Return(nil).Once()

	// Act
	canvas, err := canvasService.Create(ctx, "user-1", "My Sketch")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, canvas)
	assert.NotEmpty(t, canvas.ID, "应生成画布 ID")
	assert.Equal(t, "My Sketch", canvas.Name)
	assert.Equal(t, "user-1", canvas.OwnerID)
	mockCanvasRepo.AssertExpectations(t)
}

func TestCanvasService_Create_DefaultNameFromID(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Canvas")).Return(nil).Once()

	// Act: 不提供名称
	canvas, err := canvasService.Create(ctx, "user-1", "")

	// Assert: 缺省名称 = 前缀 + ID 前 8 位
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(canvas.Name, domain.CanvasNamePrefix), "缺省名称应带统一前缀")
	assert.Equal(t, domain.CanvasNamePrefix+canvas.ID[:8], canvas.Name)
}

func TestCanvasService_Create_WithoutOwnerRejected(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)

	// Act
	_, err := canvasService.Create(context.Background(), "", "name")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrUnauthorized))
	mockCanvasRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

// --- 测试 Get 方法 ---

func TestCanvasService_Get_NotFound(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindByID", ctx, "missing").Return(nil, repository.ErrCanvasNotFound).Once()

	// Act
	_, err := canvasService.Get(ctx, "missing")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrCanvasNotFound))
}

// --- 测试 Delete 方法 ---

func TestCanvasService_Delete_ByOwner(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", OwnerID: "user-1"}, nil).Once()
	mockCanvasRepo.On("Delete", ctx, "canvas-1").Return(nil).Once()

	// Act
	err := canvasService.Delete(ctx, "canvas-1", "user-1")

	// Assert
	assert.NoError(t, err)
	mockCanvasRepo.AssertExpectations(t)
}

func TestCanvasService_Delete_ByNonOwnerForbidden(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()

	mockCanvasRepo.On("FindByID", ctx, "canvas-1").
		Return(&domain.Canvas{ID: "canvas-1", OwnerID: "user-1"}, nil).Once()

	// Act: 非所有者尝试删除
	err := canvasService.Delete(ctx, "canvas-1", "intruder")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	mockCanvasRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- 测试 ListByOwner 方法 ---

func TestCanvasService_ListByOwner(t *testing.T) {
	// Arrange
	mockCanvasRepo := new(mocks.CanvasRepository)
	canvasService := service.NewCanvasService(mockCanvasRepo)
	ctx := context.Background()
	owned := []domain.Canvas{
		{ID: "canvas-1", OwnerID: "user-1"},
		{ID: "canvas-2", OwnerID: "user-1"},
	}

	mockCanvasRepo.On("FindByOwner", ctx, "user-1").Return(owned, nil).Once()

	// Act
	canvases, err := canvasService.ListByOwner(ctx, "user-1")

	// Assert
	require.NoError(t, err)
	assert.Len(t, canvases, 2)
	mockCanvasRepo.AssertExpectations(t)
}
