package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/types"
)

// DraftLineItem is the server-side price snapshot for one product at
// checkout time. Quantities and unit prices are frozen here; settlement
// recomputes totals from these values, never from client input.
type DraftLineItem struct {
	ProductID      uuid.UUID
	Name           string
	Cut            *string
	WeightGrams    int
	UnitPriceCents int
	Qty            int
}

// Draft carries everything needed to persist a provisional order.
type Draft struct {
	OwnerID         uuid.UUID
	IdempotencyKey  string
	ShippingMethod  enums.ShippingMethod
	ShippingAddress *types.ShippingAddress
	Coupon          *types.CouponRef
	LineItems       []DraftLineItem
	Notes           *string
}

// View is the read-model returned to customers: the stored aggregate
// plus the derived status.
type View struct {
	ID             uuid.UUID              `json:"id"`
	ComputedStatus enums.ComputedStatus   `json:"computed_status"`
	ShippingMethod enums.ShippingMethod   `json:"shipping_method"`
	PaymentStatus  enums.PaymentStatus    `json:"payment_status"`
	SubtotalCents  int                    `json:"subtotal_cents"`
	DiscountCents  int                    `json:"discount_cents"`
	DeliveryCents  int                    `json:"delivery_fee_cents"`
	TaxCents       int                    `json:"tax_cents"`
	TotalCents     int                    `json:"total_cents"`
	Coupon         *types.CouponRef       `json:"coupon,omitempty"`
	Address        *types.ShippingAddress `json:"shipping_address,omitempty"`
	TrackingURL    *string                `json:"tracking_url,omitempty"`
	DriverInfo     *types.DriverInfo      `json:"driver_info,omitempty"`
	LineItems      []LineItemView         `json:"line_items"`
	CreatedAt      time.Time              `json:"created_at"`
}

// LineItemView is the customer-facing projection of a line item.
type LineItemView struct {
	Name           string  `json:"name"`
	Cut            *string `json:"cut,omitempty"`
	WeightGrams    int     `json:"weight_grams"`
	UnitPriceCents int     `json:"unit_price_cents"`
	Qty            int     `json:"qty"`
	TotalCents     int     `json:"total_cents"`
}

// NewView projects an order and its derived status into the read model.
func NewView(order *models.Order, computed enums.ComputedStatus) *View {
	if order == nil {
		return nil
	}
	items := make([]LineItemView, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, LineItemView{
			Name:           item.Name,
			Cut:            item.Cut,
			WeightGrams:    item.WeightGrams,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return &View{
		ID:             order.ID,
		ComputedStatus: computed,
		ShippingMethod: order.ShippingMethod,
		PaymentStatus:  order.PaymentStatus,
		SubtotalCents:  order.SubtotalCents,
		DiscountCents:  order.DiscountCents,
		DeliveryCents:  order.DeliveryFeeCents,
		TaxCents:       order.TaxCents,
		TotalCents:     order.TotalCents,
		Coupon:         order.Coupon,
		Address:        order.ShippingAddress,
		TrackingURL:    order.TrackingURL,
		DriverInfo:     order.DriverInfo,
		LineItems:      items,
		CreatedAt:      order.CreatedAt,
	}
}
