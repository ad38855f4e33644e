package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponRedemption records one coupon use against a settled order.
type CouponRedemption struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
