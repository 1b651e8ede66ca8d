//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"fashionshop/internal/config"
	"fashionshop/internal/handler"
	"fashionshop/internal/middleware"
	"fashionshop/internal/server"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var HandlerSet = wire.NewSet(
	handler.NewProductHandler,
	handler.NewAdminProductHandler,
	handler.NewCartHandler,
	handler.NewAddressHandler,
	handler.NewOrderHandler,
	handler.NewAdminOrderHandler,
	handler.NewStockNotificationHandler,
	handler.NewAdminAuditHandler,
	wire.Struct(new(server.Handlers), "*"),
)

// InitializeAPI はHTTPサーバーと依存をまとめて組み立てる
func InitializeAPI(ctx context.Context, cfg config.Config, db *gorm.DB, rdb *redis.Client) (*API, error) {
	wire.Build(
		RepositorySet,
		UsecaseSet,
		NotificationSet,
		HandlerSet,
		ProvideLimiter,
		middleware.NewGuards,
		ProvideEcho,
		wire.Struct(new(API), "*"),
	)
	return nil, nil
}

// InitializeNotifier はcmd/notifier用
func InitializeNotifier(ctx context.Context, cfg config.Config, db *gorm.DB) (*Notifier, error) {
	wire.Build(
		RepositorySet,
		UsecaseSet,
		NotificationSet,
		wire.Struct(new(Notifier), "*"),
	)
	return nil, nil
}
