package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/service"
	"collaborative-canvas/internal/tasks"
)

// CanvasPersistHandler 处理画布状态持久化任务
type CanvasPersistHandler struct {
	docService *service.DocumentService
}

// NewCanvasPersistHandler 创建 Handler 实例
func NewCanvasPersistHandler(docService *service.DocumentService) *CanvasPersistHandler {
	if docService == nil {
		panic("DocumentService cannot be nil for CanvasPersistHandler")
	}
	return &CanvasPersistHandler{docService: docService}
}

// ProcessTask 实现 asynq.Handler 接口。
// 负载损坏时跳过重试；存储失败返回错误，交给 asynq 按退避重试。
func (h *CanvasPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	retryCount, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"retry":     retryCount,
	})

	var payload tasks.CanvasPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx = logCtx.WithField("canvas_id", payload.CanvasID)
	if err := h.docService.Store(ctx, payload.CanvasID, payload.State, payload.OwnerID); err != nil {
		logCtx.WithError(err).Error("Failed to persist canvas state")
		return fmt.Errorf("failed to persist canvas %s: %w", payload.CanvasID, err)
	}

	logCtx.WithField("state_bytes", len(payload.State)).Info("Canvas persist task processed")
	return nil
}
