package repository

import (
	"context"
	"time"

	"collaborative-canvas/internal/domain"
)

// CanvasRepository 定义了画布数据的存储和检索操作。
type CanvasRepository interface {
	// FindByID 根据画布 ID 查找画布元数据 (不含 State 列，避免加载大字段)。
	// 如果画布不存在，返回 ErrCanvasNotFound。
	FindByID(ctx context.Context, id string) (*domain.Canvas, error)

	// FindStateByID 根据画布 ID 读取持久化的文档状态列。
	// 如果画布不存在，返回 ErrCanvasNotFound。
	FindStateByID(ctx context.Context, id string) (*domain.Canvas, error)

	// Exists 检查指定 ID 的画布是否已存在。
	Exists(ctx context.Context, id string) (bool, error)

	// Insert 创建一条新的画布记录。
	// 如果主键冲突 (并发首次保存)，返回 ErrDuplicateEntry。
	Insert(ctx context.Context, canvas *domain.Canvas) error

	// UpdateState 只更新画布的状态列和更新时间，其余列 (包括 OwnerID) 保持不变。
	UpdateState(ctx context.Context, id string, state string, updatedAt time.Time) error

	// FindByOwner 查询某个用户拥有的全部画布 (不含 State 列)。
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error)

	// Delete 删除指定画布。画布不存在时返回 ErrCanvasNotFound。
	Delete(ctx context.Context, id string) error
}
