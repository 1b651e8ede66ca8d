package usecase

import (
	"fashionshop/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 送料の決め方
type ShippingPolicy struct {
	StandardCost decimal.Decimal
	ExpressCost  decimal.Decimal
	// 0以下なら無料配送なし
	FreeOver decimal.Decimal
}

func (p ShippingPolicy) Cost(method model.ShippingMethod, subtotal decimal.Decimal) decimal.Decimal {
	if method == model.ShippingStorePickup {
		return decimal.Zero
	}
	if p.FreeOver.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeOver) {
		return decimal.Zero
	}
	if method == model.ShippingExpress {
		return p.ExpressCost
	}
	return p.StandardCost
}
