package repository

import (
	"context"

	"fashionshop/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	Create(ctx context.Context, cart *model.Cart) error
	// アーカイブ済みにする（明細は消さない）
	Archive(ctx context.Context, cartID int64) error
}

// 保存済みカート
type CartHistoryRepository interface {
	Create(ctx context.Context, h *model.CartHistory) error
	FindByID(ctx context.Context, historyID int64) (model.CartHistory, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.CartHistory, error)
}
