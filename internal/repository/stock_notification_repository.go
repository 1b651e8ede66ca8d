package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
)

type StockNotificationRepository interface {
	FindActive(ctx context.Context, productID int64, subscriberKey string) (model.UserStockNotification, bool, error)
	// 有効な購読が既にあれば ErrDuplicate
	Create(ctx context.Context, n *model.UserStockNotification) error
	ListActiveByProduct(ctx context.Context, productID int64) ([]model.UserStockNotification, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]model.UserStockNotification, error)
	// 有効なものだけ無効化。無効化できなければ false
	Deactivate(ctx context.Context, id int64, notifiedAt *time.Time) (bool, error)
}
