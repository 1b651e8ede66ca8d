package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// 作成後にIDが埋まる。冪等キー重複は ErrDuplicate
	Create(ctx context.Context, order *model.Order) error

	// statusがfromのときだけtoへ更新する（比較して更新）。更新できなければ false
	Transition(ctx context.Context, orderID int64, from, to model.OrderStatus, fields map[string]any) (bool, error)

	UpdateInvoice(ctx context.Context, orderID int64, pdfURL string, status model.EinvoiceStatus) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
