package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

// AccessLogRepository 是 repository.AccessLogRepository 的 mock 实现。
type AccessLogRepository struct {
	mock.Mock
}

func (m *AccessLogRepository) FindRecent(ctx context.Context, canvasID, userID, action string, since time.Time) (*domain.CanvasAccessLog, error) {
	args := m.Called(ctx, canvasID, userID, action, since)
	var entry *domain.CanvasAccessLog
	if v := args.Get(0); v != nil {
		entry = v.(*domain.CanvasAccessLog)
	}
	return entry, args.Error(1)
}

func (m *AccessLogRepository) Insert(ctx context.Context, entry *domain.CanvasAccessLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
