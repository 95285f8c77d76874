// Package domain 定义了应用程序中使用的数据结构 (数据库模型)。
package domain

import "time"

// CanvasNamePrefix 是自动生成画布名称时使用的固定前缀。
const CanvasNamePrefix = "Canvas "

// Canvas 表示一个协作画布及其持久化的文档状态。
// ID 由客户端在连接 URL 中指定 (房间名即文档名)，因此是字符串主键。
type Canvas struct {
	ID        string    `gorm:"primaryKey;size:191"`  // 画布唯一标识符，来自同步连接的房间名
	Name      string    `gorm:"size:191;not null"`    // 展示名称，缺省由 DefaultCanvasName 生成
	State     *string   `gorm:"type:longtext"`        // 文本编码后的文档二进制状态，nil 表示尚无快照
	OwnerID   string    `gorm:"size:191;index"`       // 首次保存该画布的用户 ID，写入后不再变更
	CreatedAt time.Time `gorm:"autoCreateTime"`       // 记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"` // 最后一次状态保存时间 (保存时显式更新)
}

// DefaultCanvasName 根据画布 ID 生成缺省名称: 固定前缀加 ID 的前 8 个字符。
// ID 不足 8 个字符时使用完整 ID。
func DefaultCanvasName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return CanvasNamePrefix + short
}
