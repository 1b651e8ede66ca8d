package model

import (
	"fmt"
	"strings"
	"time"
)

// 再入荷通知の購読。SubscriberKeyは "user:<id>" か "guest:<email>"。
type UserStockNotification struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     int64      `gorm:"not null;index;uniqueIndex:idx_stock_notif_active,where:is_active = true" json:"product_id"`
	SubscriberKey string     `gorm:"type:varchar(300);not null;uniqueIndex:idx_stock_notif_active,where:is_active = true" json:"-"`
	UserID        *int64     `gorm:"index" json:"user_id,omitempty"`
	GuestEmail    string     `gorm:"type:varchar(255)" json:"guest_email,omitempty"`
	IsActive      bool       `gorm:"not null;default:true;index" json:"is_active"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func UserSubscriberKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func GuestSubscriberKey(email string) string {
	return "guest:" + strings.ToLower(strings.TrimSpace(email))
}
