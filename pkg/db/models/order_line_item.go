package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the product snapshot for each item on an order.
type OrderLineItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	Cut            *string    `gorm:"column:cut"`
	WeightGrams    int        `gorm:"column:weight_grams;not null;default:0"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
