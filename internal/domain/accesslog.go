package domain

import "time"

// ActionAccessed 表示用户通过同步连接访问了某个画布。
const ActionAccessed = "accessed"

// CanvasAccessLog 是画布访问的审计记录。
// 审计写入是尽力而为的: 同一 (画布, 用户, 动作) 在去重窗口内只记录一次。
type CanvasAccessLog struct {
	ID        uint      `gorm:"primaryKey"`
	CanvasID  string    `gorm:"size:191;not null;index:idx_access_dedupe,priority:1"` // 被访问的画布 ID
	UserID    string    `gorm:"size:36;not null;index:idx_access_dedupe,priority:2"`  // 访问者的用户 ID
	Action    string    `gorm:"size:32;not null;index:idx_access_dedupe,priority:3"`  // 动作类型，例如 "accessed"
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_access_dedupe,priority:4"`    // 记录创建时间，去重查询按此过滤
}
