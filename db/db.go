package db

import (
	"fmt"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 按 DB_DRIVER 打开连接并迁移
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	level := logger.Silent
	if !cfg.IsProduction() {
		level = logger.Warn
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// SQLite 只允许单写者，串行化所有连接
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database connected")
	return conn, nil
}

// Migrate 建表 + GORM 表达不了的部分索引；Postgres 与 SQLite 都支持 WHERE 子句索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Room{},
		&models.RoomRental{},
		&models.InventoryItem{},
		&models.InventoryRental{},
		&models.PasswordReset{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	indexes := []string{
		// 未删除用户中 email / username / nip 唯一
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_email_alive ON %s (email) WHERE deleted_at IS NULL`,
			models.UserTable, models.UserTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_username_alive ON %s (username) WHERE deleted_at IS NULL`,
			models.UserTable, models.UserTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_nip_alive ON %s (nip) WHERE deleted_at IS NULL AND nip IS NOT NULL`,
			models.UserTable, models.UserTable),
		// 未删除房间中名称唯一
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_name_alive ON %s (name) WHERE deleted_at IS NULL`,
			models.RoomTable, models.RoomTable),
		// 同一房间最多一条进行中的租用
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_room ON %s (room_id) WHERE end_time IS NULL`,
			models.RoomRentalTable, models.RoomRentalTable),
		// 同一用户全局最多一条进行中的房间租用
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_user ON %s (user_id) WHERE end_time IS NULL`,
			models.RoomRentalTable, models.RoomRentalTable),
		// 查询某用户在某物品上的未归还记录
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_open_item_user ON %s (inventory_id, user_id, start_time) WHERE end_time IS NULL`,
			models.InventoryRentalTable, models.InventoryRentalTable),
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
