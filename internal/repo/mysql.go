package repo

import (
	"fmt"
	"time"

	"sharelink/config"
	"sharelink/model"
	"sharelink/utils"

	"go.uber.org/zap"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AutoMigrate creates or updates the share_link table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.ShareLink{})
}

// InitMysql opens the MySQL connection used by GormLinkStore.
func InitMysql(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(gormMysql.Open(cfg.MySQLDSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("init mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate share_link: %w", err)
	}
	utils.Log.Info("init mysql success", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return db, nil
}
