package repository

import (
	"context"

	"fashionshop/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一 (product, size, color) は数量をプラス
	UpsertVariant(ctx context.Context, item model.CartItem) error
	CreateBulk(ctx context.Context, items []model.CartItem) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	// ACTIVEカートの明細かつ本人のものか
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}
