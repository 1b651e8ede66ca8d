package repository

import (
	"context"

	"fashionshop/internal/domain/model"
)

type MovementFilter struct {
	ProductID *int64
	OrderID   *int64
	Type      *model.MovementType
	Page      int
	Limit     int
}

// 在庫台帳。products.stockを変えるのはこのrepositoryだけ。
type InventoryRepository interface {
	// 在庫が足りるときだけ減算。足りなければ ok=false
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (stockAfter int64, ok bool, err error)

	// 在庫戻し・入荷
	IncreaseStock(ctx context.Context, productID int64, qty int64) (stockAfter int64, err error)

	// 台帳に1行追記
	AppendMovement(ctx context.Context, m *model.StockMovement) error

	ListMovements(ctx context.Context, f MovementFilter) ([]model.StockMovement, int64, error)

	// IN合計とOUT合計
	MovementTotals(ctx context.Context, productID int64) (in int64, out int64, err error)
}
