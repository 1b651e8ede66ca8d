package model

import "time"

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// 在庫変動の発生元
type MovementSource string

const (
	MovementSourceInitial      MovementSource = "INITIAL"
	MovementSourceOrder        MovementSource = "ORDER"
	MovementSourceCancellation MovementSource = "CANCELLATION"
	MovementSourceReturn       MovementSource = "RETURN"
	MovementSourceExchange     MovementSource = "EXCHANGE"
	MovementSourceRestock      MovementSource = "RESTOCK"
	MovementSourceAdjustment   MovementSource = "ADJUSTMENT"
)

// 在庫台帳。追記のみ（更新・削除しない）。
type StockMovement struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64          `gorm:"not null;index" json:"product_id"`
	OrderID     *int64         `gorm:"index" json:"order_id,omitempty"`
	Type        MovementType   `gorm:"type:varchar(10);not null;index" json:"type"`
	Source      MovementSource `gorm:"type:varchar(20);not null" json:"source"`
	Quantity    int64          `gorm:"not null;check:quantity > 0" json:"quantity"`
	StockAfter  int64          `gorm:"not null" json:"stock_after"`
	Description string         `gorm:"type:varchar(255)" json:"description"`
	ActorUserID *int64         `gorm:"index" json:"actor_user_id,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
