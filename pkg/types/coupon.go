package types

import "github.com/primecutco/primecut-backend/pkg/enums"

// CouponRef is the coupon snapshot frozen onto the order at checkout.
// Value is a whole percentage for percentage coupons and cents for
// fixed coupons; DiscountCents is the amount actually deducted.
type CouponRef struct {
	Code          string           `json:"code"`
	Type          enums.CouponType `json:"type"`
	Value         int              `json:"value"`
	DiscountCents int              `json:"discount_cents"`
}
