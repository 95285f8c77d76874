package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// canvasMetaColumns 列出元数据查询加载的列。
// State 列可能有数 MB，列表和详情接口都不应加载它。
var canvasMetaColumns = []string{"id", "name", "owner_id", "created_at", "updated_at"}

// GormCanvasRepository 是 CanvasRepository 接口的 GORM 实现
type GormCanvasRepository struct {
	db *gorm.DB
}

// NewGormCanvasRepository 创建 GormCanvasRepository 实例
func NewGormCanvasRepository(db *gorm.DB) *GormCanvasRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCanvasRepository")
	}
	return &GormCanvasRepository{db: db}
}

// FindByID 实现按画布 ID 查找元数据
func (r *GormCanvasRepository) FindByID(ctx context.Context, id string) (*domain.Canvas, error) {
	var canvas domain.Canvas
	err := r.db.WithContext(ctx).Select(canvasMetaColumns).Where("id = ?", id).First(&canvas).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCanvasNotFound
		}
		return nil, fmt.Errorf("gorm: find canvas by id '%s': %w", id, err)
	}
	return &canvas, nil
}

// FindStateByID 实现读取画布的状态列
func (r *GormCanvasRepository) FindStateByID(ctx context.Context, id string) (*domain.Canvas, error) {
	var canvas domain.Canvas
	err := r.db.WithContext(ctx).Select("id", "state").Where("id = ?", id).First(&canvas).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCanvasNotFound
		}
		return nil, fmt.Errorf("gorm: find canvas state by id '%s': %w", id, err)
	}
	return &canvas, nil
}

// Exists 实现检查画布记录是否存在
func (r *GormCanvasRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	// 使用 Count() 优化查询，只查询数量
	err := r.db.WithContext(ctx).Model(&domain.Canvas{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count canvases by id '%s': %w", id, err)
	}
	return count > 0, nil
}

// Insert 实现创建新的画布记录
func (r *GormCanvasRepository) Insert(ctx context.Context, canvas *domain.Canvas) error {
	err := r.db.WithContext(ctx).Create(canvas).Error
	if err != nil {
		// 并发的首次保存可能撞上主键冲突，映射为仓库错误让调用方决定如何处理
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: insert canvas '%s': %w", canvas.ID, err)
	}
	return nil
}

// UpdateState 实现只更新状态列和更新时间。
// 更新列显式列出，OwnerID 永远不会出现在更新语句里。
func (r *GormCanvasRepository) UpdateState(ctx context.Context, id string, state string, updatedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Canvas{}).Where("id = ?", id).
		Updates(map[string]interface{}{"state": state, "updated_at": updatedAt}).Error
	if err != nil {
		return fmt.Errorf("gorm: update canvas state '%s': %w", id, err)
	}
	return nil
}

// FindByOwner 实现查询某个用户拥有的全部画布
func (r *GormCanvasRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Canvas, error) {
	var canvases []domain.Canvas
	err := r.db.WithContext(ctx).Select(canvasMetaColumns).
		Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&canvases).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find canvases by owner '%s': %w", ownerID, err)
	}
	return canvases, nil
}

// Delete 实现删除画布记录
func (r *GormCanvasRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Canvas{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete canvas '%s': %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCanvasNotFound
	}
	return nil
}
