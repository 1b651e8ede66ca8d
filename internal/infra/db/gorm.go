package db

import (
	"fashionshop/internal/config"
	"fashionshop/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsDev() {
		level = gormlogger.Info
	}

	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
}

// Migrate はテーブルと部分ユニークインデックスを作る。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.StockMovement{},
		&model.Cart{},
		&model.CartItem{},
		&model.CartHistory{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.UserStockNotification{},
		&model.OutboxEvent{},
		&model.AuditLog{},
	)
}
