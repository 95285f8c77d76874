package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// CanvasService 负责画布元数据的业务逻辑 (REST 接口使用)。
// 文档状态的读写不走这里，见 DocumentService。
type CanvasService struct {
	canvasRepo repository.CanvasRepository
}

// NewCanvasService 创建 CanvasService 实例。
func NewCanvasService(canvasRepo repository.CanvasRepository) *CanvasService {
	if canvasRepo == nil {
		panic("CanvasRepository cannot be nil for CanvasService")
	}
	return &CanvasService{canvasRepo: canvasRepo}
}

// Create 创建一块新画布。name 为空时按生成的 ID 取缺省名称。
func (s *CanvasService) Create(ctx context.Context, ownerID, name string) (*domain.Canvas, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	logCtx := logrus.WithField("user_id", ownerID)

	id := uuid.NewString()
	if name == "" {
		name = domain.DefaultCanvasName(id)
	}

	canvas := &domain.Canvas{ID: id, Name: name, OwnerID: ownerID}
	if err := s.canvasRepo.Insert(ctx, canvas); err != nil {
		logCtx.WithError(err).Error("Failed to create canvas")
		return nil, ErrInternalServer
	}

	logCtx.WithField("canvas_id", id).Info("Canvas created")
	return canvas, nil
}

// Get 返回画布元数据 (不含文档状态)。
func (s *CanvasService) Get(ctx context.Context, id string) (*domain.Canvas, error) {
	canvas, err := s.canvasRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCanvasNotFound) {
			return nil, ErrCanvasNotFound
		}
		logrus.WithError(err).WithField("canvas_id", id).Error("Failed to load canvas")
		return nil, ErrInternalServer
	}
	return canvas, nil
}

// ListByOwner 返回用户拥有的全部画布。
func (s *CanvasService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	canvases, err := s.canvasRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", ownerID).Error("Failed to list canvases")
		return nil, ErrInternalServer
	}
	return canvases, nil
}

// Delete 删除画布，仅画布所有者可以执行。
func (s *CanvasService) Delete(ctx context.Context, id, requesterID string) error {
	canvas, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if canvas.OwnerID != requesterID {
		logrus.WithFields(logrus.Fields{"canvas_id": id, "user_id": requesterID}).
			Warn("Refusing canvas delete by non-owner")
		return ErrForbidden
	}

	if err := s.canvasRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCanvasNotFound) {
			return ErrCanvasNotFound
		}
		logrus.WithError(err).WithField("canvas_id", id).Error("Failed to delete canvas")
		return ErrInternalServer
	}

	logrus.WithFields(logrus.Fields{"canvas_id": id, "user_id": requesterID}).Info("Canvas deleted")
	return nil
}
