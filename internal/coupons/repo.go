// Package coupons records redemptions against settled orders.
package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/primecutco/primecut-backend/pkg/db"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
)

// Repository resolves coupon codes and records usage.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	RecordUsage(ctx context.Context, code string, orderID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return &coupon, nil
}

// RecordUsage writes one redemption row and bumps the global counter.
// The unique index on order_id makes a replayed settlement a no-op
// instead of double-counting the coupon.
func (r *repository) RecordUsage(ctx context.Context, code string, orderID, userID uuid.UUID) error {
	coupon, err := r.FindByCode(ctx, code)
	if err != nil {
		return err
	}

	redemption := models.CouponRedemption{
		CouponID: coupon.ID,
		OrderID:  orderID,
		UserID:   userID,
	}
	if err := r.db.WithContext(ctx).Create(&redemption).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon redemption")
	}

	err = r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", coupon.ID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	return nil
}
