package model

import "time"

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventProductRestocked   EventType = "product.restocked"
)

// トランザクション内で書くイベント。リレーがコミット後に配信する。
type OutboxEvent struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`
	Type        EventType  `gorm:"type:varchar(50);not null;index" json:"type"`
	AggregateID int64      `gorm:"not null;index" json:"aggregate_id"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
	// リレーが配信中の行。期限切れなら別のリレーが取り直す
	LockedUntil *time.Time `gorm:"index" json:"locked_until,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

type OrderPlacedPayload struct {
	OrderID int64 `json:"order_id"`
}

type OrderStatusChangedPayload struct {
	OrderID int64       `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

type ProductRestockedPayload struct {
	ProductID  int64 `json:"product_id"`
	Quantity   int64 `json:"quantity"`
	StockAfter int64 `json:"stock_after"`
}
