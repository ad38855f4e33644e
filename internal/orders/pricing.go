package orders

import (
	"github.com/shopspring/decimal"

	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/types"
)

// Amounts is the priced breakdown of an order in minor currency units.
type Amounts struct {
	SubtotalCents    int
	DiscountCents    int
	DeliveryFeeCents int
	TaxCents         int
	TotalCents       int
}

// ComputeAmounts prices an order from its own line-item snapshot.
// Checkout and settlement both call this, so a client cannot change the
// charged total between session creation and payment confirmation.
// Tax applies to the discounted subtotal; the delivery fee is waived at
// the configured free-delivery threshold.
func ComputeAmounts(items []models.OrderLineItem, coupon *types.CouponRef, method enums.ShippingMethod, pricing config.PricingConfig) Amounts {
	subtotal := 0
	for _, item := range items {
		subtotal += item.UnitPriceCents * item.Qty
	}

	discount := couponDiscountCents(subtotal, coupon)
	if discount > subtotal {
		discount = subtotal
	}

	deliveryFee := 0
	if method == enums.ShippingMethodCarrierDelivery {
		deliveryFee = pricing.DeliveryFeeCents
		if pricing.FreeDeliveryMinCents > 0 && subtotal >= pricing.FreeDeliveryMinCents {
			deliveryFee = 0
		}
	}

	taxable := subtotal - discount
	tax := pricing.TaxRate.
		Mul(decimal.NewFromInt(int64(taxable))).
		Round(0).
		IntPart()

	return Amounts{
		SubtotalCents:    subtotal,
		DiscountCents:    discount,
		DeliveryFeeCents: deliveryFee,
		TaxCents:         int(tax),
		TotalCents:       taxable + int(tax) + deliveryFee,
	}
}

func couponDiscountCents(subtotalCents int, coupon *types.CouponRef) int {
	if coupon == nil || coupon.Value <= 0 {
		return 0
	}
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromInt(int64(coupon.Value))).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		return int(discount)
	case enums.CouponTypeFixed:
		return coupon.Value
	default:
		return 0
	}
}

// Apply writes the computed breakdown onto the order.
func (a Amounts) Apply(order *models.Order) {
	order.SubtotalCents = a.SubtotalCents
	order.DiscountCents = a.DiscountCents
	order.DeliveryFeeCents = a.DeliveryFeeCents
	order.TaxCents = a.TaxCents
	order.TotalCents = a.TotalCents
}
