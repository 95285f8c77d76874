package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB // 依赖 GORM DB 连接
}

// NewGormUserRepository 创建 GormUserRepository 实例
// db *gorm.DB 通过依赖注入传入
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		// 早期失败比运行时 panic 更好
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByUsername 实现根据用户名查找用户
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 映射为定义的仓库层错误
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by username '%s': %w", username, err)
	}
	return &user, nil
}

// FindByID 实现根据用户 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	// 主键是字符串 (UUID)，必须走 Where 条件而不是 First 的主键内联参数
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by id '%s': %w", id, err)
	}
	return &user, nil
}

// Save 实现保存用户信息（创建或更新）
// GORM 的 Save 方法会根据主键是否为零值决定是 INSERT 还是 UPDATE。
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Save(user).Error
	if err != nil {
		// 唯一约束检查 (以 MySQL 为例)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry // 映射为定义的仓库错误
		}
		return fmt.Errorf("gorm: save user (id: %s, username: %s): %w", user.ID, user.Username, err)
	}
	return nil
}
