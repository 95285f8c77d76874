package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// GormAccessLogRepository 是 AccessLogRepository 接口的 GORM 实现
type GormAccessLogRepository struct {
	db *gorm.DB
}

// NewGormAccessLogRepository 创建 GormAccessLogRepository 实例
func NewGormAccessLogRepository(db *gorm.DB) *GormAccessLogRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAccessLogRepository")
	}
	return &GormAccessLogRepository{db: db}
}

// FindRecent 实现查找去重窗口内的最新审计记录。
// 查询命中 idx_access_dedupe 组合索引，热点画布上也只是一次索引扫描。
func (r *GormAccessLogRepository) FindRecent(ctx context.Context, canvasID, userID, action string, since time.Time) (*domain.CanvasAccessLog, error) {
	var entry domain.CanvasAccessLog
	err := r.db.WithContext(ctx).
		Where("canvas_id = ? AND user_id = ? AND action = ? AND created_at >= ?", canvasID, userID, action, since).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find recent access log (canvas: %s, user: %s): %w", canvasID, userID, err)
	}
	return &entry, nil
}

// Insert 实现写入一条审计记录
func (r *GormAccessLogRepository) Insert(ctx context.Context, entry *domain.CanvasAccessLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("gorm: insert access log (canvas: %s, user: %s): %w", entry.CanvasID, entry.UserID, err)
	}
	return nil
}
