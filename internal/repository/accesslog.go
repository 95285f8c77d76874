package repository

import (
	"context"
	"time"

	"collaborative-canvas/internal/domain"
)

// AccessLogRepository 定义了画布访问审计记录的存储和检索操作。
type AccessLogRepository interface {
	// FindRecent 查找 since 之后同一 (画布, 用户, 动作) 的最新一条审计记录。
	// 没有匹配记录时返回 ErrNotFound，调用方据此决定是否写入新记录。
	FindRecent(ctx context.Context, canvasID, userID, action string, since time.Time) (*domain.CanvasAccessLog, error)

	// Insert 写入一条审计记录。
	Insert(ctx context.Context, entry *domain.CanvasAccessLog) error
}
