package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 同じカート内で (product, size, color) は1行
type CartItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64           `gorm:"not null;index;uniqueIndex:idx_cart_item_variant" json:"cart_id"`
	ProductID         int64           `gorm:"not null;index;uniqueIndex:idx_cart_item_variant" json:"product_id"`
	Size              string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_cart_item_variant" json:"size"`
	Color             string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_cart_item_variant" json:"color"`
	Quantity          int64           `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price_snapshot"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
