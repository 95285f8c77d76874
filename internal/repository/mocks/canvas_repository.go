package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

// CanvasRepository 是 repository.CanvasRepository 的 mock 实现。
type CanvasRepository struct {
	mock.Mock
}

func (m *CanvasRepository) FindByID(ctx context.Context, id string) (*domain.Canvas, error) {
	args := m.Called(ctx, id)
	var canvas *domain.Canvas
	if v := args.Get(0); v != nil {
		canvas = v.(*domain.Canvas)
	}
	return canvas, args.Error(1)
}

func (m *CanvasRepository) FindStateByID(ctx context.Context, id string) (*domain.Canvas, error) {
	args := m.Called(ctx, id)
	var canvas *domain.Canvas
	if v := args.Get(0); v != nil {
		canvas = v.(*domain.Canvas)
	}
	return canvas, args.Error(1)
}

func (m *CanvasRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *CanvasRepository) Insert(ctx context.Context, canvas *domain.Canvas) error {
	args := m.Called(ctx, canvas)
	return args.Error(0)
}

func (m *CanvasRepository) UpdateState(ctx context.Context, id string, state string, updatedAt time.Time) error {
	args := m.Called(ctx, id, state, updatedAt)
	return args.Error(0)
}

func (m *CanvasRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	args := m.Called(ctx, ownerID)
	var canvases []domain.Canvas
	if v := args.Get(0); v != nil {
		canvases = v.([]domain.Canvas)
	}
	return canvases, args.Error(1)
}

func (m *CanvasRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
