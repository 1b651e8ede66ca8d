package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`

	// 在庫はStockMovementの合計と常に一致させる（直接書き換えない）
	Stock         int64 `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	MinStockLevel int64 `gorm:"not null;default:0" json:"min_stock_level"`

	IsActive       bool `gorm:"not null;default:false" json:"is_active"`
	IsReturnable   bool `gorm:"not null;default:true" json:"is_returnable"`
	IsExchangeable bool `gorm:"not null;default:true" json:"is_exchangeable"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func (p Product) LowStock() bool {
	return p.Stock <= p.MinStockLevel
}
