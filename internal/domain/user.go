package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 表示应用程序中的用户。
// 主键使用 UUID 字符串，便于在 JWT 声明和审计日志中直接引用。
type User struct {
	ID        string    `gorm:"primaryKey;size:36"` // 用户唯一标识符 (UUID)
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password  string    `gorm:"type:text;not null"` // 存储的是哈希后的密码，不能为空
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email"`
	CreatedAt time.Time `gorm:"autoCreateTime"` // 用户记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime"` // 用户记录最后更新时间 (GORM 自动填充)
}

// BeforeCreate 在插入前填充 UUID 主键 (GORM 钩子)。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
