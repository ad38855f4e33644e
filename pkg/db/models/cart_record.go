package models

import (
	"time"

	"github.com/google/uuid"
)

// CartRecord is the buyer-scoped active cart cleared at settlement.
type CartRecord struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	ClearedAt *time.Time `gorm:"column:cleared_at"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
