package model

import "time"

type AddressType string

const (
	AddressTypeDelivery AddressType = "DELIVERY"
	AddressTypeInvoice  AddressType = "INVOICE"
)

// 住所。UserIDがnilのものはゲスト注文用（住所録には出ない）。
type Address struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID *int64 `gorm:"index;uniqueIndex:idx_addresses_default_user,where:is_default = true" json:"user_id,omitempty"`

	Type  AddressType `gorm:"type:varchar(20);not null;default:'DELIVERY'" json:"type"`
	Title string      `gorm:"type:varchar(100)" json:"title"`

	//宛名
	FirstName string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(100);not null" json:"last_name"`
	Phone     string `gorm:"type:varchar(30);not null" json:"phone"`
	Email     string `gorm:"type:varchar(255)" json:"email"`

	Country    string `gorm:"type:varchar(100);not null" json:"country"`
	City       string `gorm:"type:varchar(100);not null" json:"city"`
	District   string `gorm:"type:varchar(100)" json:"district"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (a Address) OwnedBy(userID int64) bool {
	return a.UserID != nil && *a.UserID == userID
}
