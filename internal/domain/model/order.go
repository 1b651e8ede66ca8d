package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingStandard    ShippingMethod = "STANDARD"
	ShippingExpress     ShippingMethod = "EXPRESS"
	ShippingStorePickup ShippingMethod = "STORE_PICKUP"
)

type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

type InvoiceType string

const (
	InvoiceIndividual InvoiceType = "INDIVIDUAL"
	InvoiceCorporate  InvoiceType = "CORPORATE"
)

type EinvoiceStatus string

const (
	EinvoicePending   EinvoiceStatus = "PENDING"
	EinvoiceGenerated EinvoiceStatus = "GENERATED"
	EinvoiceFailed    EinvoiceStatus = "FAILED"
)

// 交換申請の内容
type ExchangeRequest struct {
	OrderItemID        *int64  `json:"order_item_id,omitempty"`
	RequestedProductID *int64  `json:"requested_product_id,omitempty"`
	RequestedSize      *string `gorm:"type:varchar(20)" json:"requested_size,omitempty"`
	RequestedColor     *string `gorm:"type:varchar(50)" json:"requested_color,omitempty"`
}

// UserIDがnilならゲスト注文（Guest*が必須）
type Order struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID *int64 `gorm:"index" json:"user_id,omitempty"`

	GuestEmail     string `gorm:"type:varchar(255)" json:"guest_email,omitempty"`
	GuestFirstName string `gorm:"type:varchar(100)" json:"guest_first_name,omitempty"`
	GuestLastName  string `gorm:"type:varchar(100)" json:"guest_last_name,omitempty"`
	GuestPhone     string `gorm:"type:varchar(30)" json:"guest_phone,omitempty"`

	AddressID        int64 `gorm:"not null" json:"address_id"`
	InvoiceAddressID int64 `gorm:"not null" json:"invoice_address_id"`

	ShippingMethod ShippingMethod `gorm:"type:varchar(20);not null" json:"shipping_method"`
	PaymentMethod  PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`

	Subtotal     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Discount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	ShippingCost decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_cost"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	Note string `gorm:"type:text" json:"note"`

	InvoiceType  InvoiceType `gorm:"type:varchar(20);not null;default:'INDIVIDUAL'" json:"invoice_type"`
	TaxID        string      `gorm:"type:varchar(50)" json:"tax_id,omitempty"`
	TaxOffice    string      `gorm:"type:varchar(100)" json:"tax_office,omitempty"`
	CompanyTitle string      `gorm:"type:varchar(255)" json:"company_title,omitempty"`

	Status              OrderStatus  `gorm:"type:varchar(30);not null;index" json:"status"`
	StatusBeforeRequest *OrderStatus `gorm:"type:varchar(30)" json:"-"`

	CanCancel   bool `gorm:"not null;default:true" json:"can_cancel"`
	CanReturn   bool `gorm:"not null;default:false" json:"can_return"`
	CanExchange bool `gorm:"not null;default:false" json:"can_exchange"`

	CancelReason        string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelRequestedAt   *time.Time `json:"cancel_requested_at,omitempty"`
	ReturnReason        string     `gorm:"type:text" json:"return_reason,omitempty"`
	ReturnRequestedAt   *time.Time `json:"return_requested_at,omitempty"`
	ExchangeReason      string     `gorm:"type:text" json:"exchange_reason,omitempty"`
	ExchangeRequestedAt *time.Time `json:"exchange_requested_at,omitempty"`

	Exchange ExchangeRequest `gorm:"embedded;embeddedPrefix:exchange_" json:"exchange"`

	AdminNote      string     `gorm:"type:text" json:"admin_note,omitempty"`
	TrackingNumber string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`

	EinvoicePdfURL string         `gorm:"type:varchar(500)" json:"einvoice_pdf_url,omitempty"`
	EinvoiceStatus EinvoiceStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"einvoice_status"`

	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o Order) IsGuest() bool {
	return o.UserID == nil
}

func (o Order) OwnedBy(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}
