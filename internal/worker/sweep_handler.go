package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/hub"
)

// defaultRoomIdleAfter 是空房间被回收前允许的闲置时长。
const defaultRoomIdleAfter = 30 * time.Minute

// RoomSweepHandler 处理周期性的空闲房间清理任务
type RoomSweepHandler struct {
	registry  *hub.Registry
	idleAfter time.Duration
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(registry *hub.Registry, idleAfter time.Duration) *RoomSweepHandler {
	if registry == nil {
		panic("Registry cannot be nil for RoomSweepHandler")
	}
	if idleAfter <= 0 {
		idleAfter = defaultRoomIdleAfter
	}
	return &RoomSweepHandler{registry: registry, idleAfter: idleAfter}
}

// ProcessTask 实现 asynq.Handler 接口。清理只操作内存注册表，永远成功。
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	pruned := h.registry.PruneIdle(h.idleAfter)
	logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"pruned":    pruned,
		"rooms":     h.registry.RoomCount(),
	}).Info("Room sweep completed")
	return nil
}
