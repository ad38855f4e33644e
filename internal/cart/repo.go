// Package cart clears the buyer's active cart after settlement.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/pkg/db/models"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
)

// Repository exposes cart persistence for the settlement side effects.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ClearByOwner(ctx context.Context, ownerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ClearByOwner drops the items from the owner's open carts and stamps
// them cleared. Already-cleared carts are skipped, so a replayed
// settlement changes nothing.
func (r *repository) ClearByOwner(ctx context.Context, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	var carts []models.CartRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND cleared_at IS NULL", ownerID).
		Find(&carts).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load carts")
	}
	if len(carts) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(carts))
	for _, cart := range carts {
		ids = append(ids, cart.ID)
	}

	if err := r.db.WithContext(ctx).
		Where("cart_id IN ?", ids).
		Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart items")
	}

	now := time.Now().UTC()
	err = r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id IN ?", ids).
		UpdateColumn("cleared_at", now).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark carts cleared")
	}
	return nil
}
