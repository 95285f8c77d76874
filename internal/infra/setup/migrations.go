package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
)

// MigrateDB 负责全部数据库迁移。
// canvases 表使用自定义 SQL 创建: 主键是客户端提供的字符串，必须限制在
// 191 个字符以内才能在 utf8mb4 下建索引，AutoMigrate 对这类表结构不够可控。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateCanvasesTable(db); err != nil {
		return fmt.Errorf("failed to migrate canvases table: %w", err)
	}

	// 其余模型结构简单，交给 AutoMigrate
	if err := db.AutoMigrate(&domain.User{}, &domain.CanvasAccessLog{}); err != nil {
		logrus.Errorf("Failed to auto-migrate other tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// migrateCanvasesTable 创建或更新 canvases 表
func migrateCanvasesTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'canvases'").Count(&count)

	if count == 0 {
		return createCanvasesTable(db)
	}
	// 表已存在时让 AutoMigrate 补充缺失的列和索引
	if err := db.AutoMigrate(&domain.Canvas{}); err != nil {
		logrus.Errorf("Failed to auto-migrate Canvas table: %v", err)
		return fmt.Errorf("failed to migrate canvas indexes: %w", err)
	}
	logrus.Info("Canvases table schema checked/updated successfully")
	return nil
}

// createCanvasesTable 使用自定义 SQL 创建 canvases 表
func createCanvasesTable(db *gorm.DB) error {
	sql := `
	CREATE TABLE canvases (
		id VARCHAR(191) NOT NULL PRIMARY KEY,
		name VARCHAR(191) NOT NULL,
		state LONGTEXT,
		owner_id VARCHAR(191),
		created_at DATETIME(3),
		updated_at DATETIME(3),
		INDEX idx_canvases_owner_id (owner_id),
		INDEX idx_canvases_updated_at (updated_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create canvases table: %v", err)
		return fmt.Errorf("failed to create canvases table: %w", err)
	}
	logrus.Info("Canvases table created successfully")
	return nil
}
