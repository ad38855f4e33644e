package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/types"
)

// Order is the single persisted aggregate for the order lifecycle. The
// four status axes are stored independently; the customer-facing status
// is derived at read time and never written back.
type Order struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID            uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;index"`
	IdempotencyKey     string                 `gorm:"column:idempotency_key;not null;uniqueIndex"`
	ShippingMethod     enums.ShippingMethod   `gorm:"column:shipping_method;type:shipping_method;not null"`
	PaymentStatus      enums.PaymentStatus    `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Status             enums.OrderStatus      `gorm:"column:status;type:order_status;not null;default:'pending'"`
	AdminStatus        *enums.AdminStatus     `gorm:"column:admin_status;type:admin_status"`
	SubtotalCents      int                    `gorm:"column:subtotal_cents;not null"`
	DiscountCents      int                    `gorm:"column:discount_cents;not null;default:0"`
	DeliveryFeeCents   int                    `gorm:"column:delivery_fee_cents;not null;default:0"`
	TaxCents           int                    `gorm:"column:tax_cents;not null;default:0"`
	TotalCents         int                    `gorm:"column:total_cents;not null"`
	Coupon             *types.CouponRef       `gorm:"column:coupon;type:jsonb;serializer:json"`
	ShippingAddress    *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ProviderOrderID    *string                `gorm:"column:provider_order_id;uniqueIndex"`
	DeliveryStatus     *enums.DeliveryStatus  `gorm:"column:delivery_status;type:delivery_status"`
	DeliveryLastUpdate *time.Time             `gorm:"column:delivery_last_update"`
	DriverInfo         *types.DriverInfo      `gorm:"column:driver_info;type:jsonb;serializer:json"`
	TrackingURL        *string                `gorm:"column:tracking_url"`
	ProviderSessionID  *string                `gorm:"column:provider_session_id;index"`
	Notes              *string                `gorm:"column:notes"`
	Version            int                    `gorm:"column:version;not null;default:0"`
	PaidAt             *time.Time             `gorm:"column:paid_at"`
	CancelledAt        *time.Time             `gorm:"column:cancelled_at"`
	LineItems          []OrderLineItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
