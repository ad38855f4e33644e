package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/enums"
)

// Coupon is a redeemable discount code.
type Coupon struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string           `gorm:"column:code;not null;uniqueIndex"`
	Type           enums.CouponType `gorm:"column:type;type:coupon_type;not null"`
	Value          int              `gorm:"column:value;not null"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	MaxRedemptions *int             `gorm:"column:max_redemptions"`
	UsedCount      int              `gorm:"column:used_count;not null;default:0"`
	ExpiresAt      *time.Time       `gorm:"column:expires_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
