package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// DocumentService 是同步引擎和数据库之间的持久化桥。
// 引擎侧只面对两个宽松的入口: Fetch 永不报错 (失败等同于没有历史状态)，
// Store 返回错误供异步基础设施重试，同步路径的调用方自行吞掉。
type DocumentService struct {
	canvasRepo repository.CanvasRepository
}

// NewDocumentService 创建 DocumentService 实例。
func NewDocumentService(canvasRepo repository.CanvasRepository) *DocumentService {
	if canvasRepo == nil {
		panic("CanvasRepository cannot be nil for DocumentService")
	}
	return &DocumentService{canvasRepo: canvasRepo}
}

// Fetch 读取画布的持久化文档状态。
// 画布不存在、状态列为空或查询失败时一律返回 nil，引擎从空文档开始。
// 返回空的非 nil 切片表示曾保存过空状态，和从未保存是两种情况。
func (s *DocumentService) Fetch(ctx context.Context, canvasID string) []byte {
	logCtx := logrus.WithField("canvas_id", canvasID)

	canvas, err := s.canvasRepo.FindStateByID(ctx, canvasID)
	if err != nil {
		if !errors.Is(err, repository.ErrCanvasNotFound) {
			logCtx.WithError(err).Error("Failed to load canvas state")
		}
		return nil
	}
	if canvas.State == nil {
		return nil
	}

	state, ok := domain.DecodeState(*canvas.State)
	if !ok {
		logCtx.Warn("Canvas state column holds no decodable state")
		return nil
	}
	return state
}

// Store 持久化画布的文档状态。
// 首次保存时创建画布记录并写入 OwnerID，之后的保存只更新状态列和更新时间，
// OwnerID 一经写入永不改动。state 为 nil，或画布是新的且没有已认证用户时，
// 本次保存直接跳过。
func (s *DocumentService) Store(ctx context.Context, canvasID string, state []byte, ownerID string) error {
	if state == nil {
		return nil // 没有状态可存
	}
	logCtx := logrus.WithFields(logrus.Fields{"canvas_id": canvasID, "user_id": ownerID})

	encoded := domain.EncodeState(state)

	exists, err := s.canvasRepo.Exists(ctx, canvasID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check canvas existence")
		return err
	}

	if exists {
		if err := s.canvasRepo.UpdateState(ctx, canvasID, encoded, time.Now()); err != nil {
			logCtx.WithError(err).Error("Failed to update canvas state")
			return err
		}
		logCtx.WithField("state_bytes", len(state)).Debug("Canvas state updated")
		return nil
	}

	if ownerID == "" {
		// 匿名会话产生的新画布不落库，等有归属的保存再创建
		logCtx.Debug("Skipping first save of canvas without an authenticated user")
		return nil
	}

	canvas := &domain.Canvas{
		ID:      canvasID,
		Name:    domain.DefaultCanvasName(canvasID),
		State:   &encoded,
		OwnerID: ownerID,
	}
	if err := s.canvasRepo.Insert(ctx, canvas); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发首次保存: 另一条连接刚创建了记录。改走更新让最新状态落库，
			// 所有权归先创建者。
			if uerr := s.canvasRepo.UpdateState(ctx, canvasID, encoded, time.Now()); uerr != nil {
				logCtx.WithError(uerr).Error("Failed to update canvas state after losing insert race")
				return uerr
			}
			return nil
		}
		logCtx.WithError(err).Error("Failed to insert canvas on first save")
		return err
	}

	logCtx.WithField("canvas_name", canvas.Name).Info("Canvas created on first save")
	return nil
}
