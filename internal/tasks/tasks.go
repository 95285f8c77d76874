// Package tasks 定义后台任务的类型和负载格式。
// 入队方 (同步引擎、调度器) 和 worker 共用这里的构造函数，避免两边字段漂移。
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeCanvasPersist = "canvas:persist" // 画布状态持久化
	TypeRoomSweep     = "room:sweep"     // 空闲房间清理 (周期任务)
)

// CanvasPersistPayload 是画布状态持久化任务的负载。
// State 经 encoding/json 自动以 base64 编码，worker 端解回原始字节。
type CanvasPersistPayload struct {
	CanvasID string `json:"canvas_id"`
	State    []byte `json:"state"`
	OwnerID  string `json:"owner_id"` // 首次保存时的画布归属，可为空
}

// NewCanvasPersistTask 创建一个画布状态持久化任务。
func NewCanvasPersistTask(canvasID string, state []byte, ownerID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CanvasPersistPayload{
		CanvasID: canvasID,
		State:    state,
		OwnerID:  ownerID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCanvasPersist, payload), nil
}

// NewRoomSweepTask 创建一个空闲房间清理任务，无负载。
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}
