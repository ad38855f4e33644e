package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	ListAll(ctx context.Context, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int) (bool, error)
	DeletePending(ctx context.Context, id uuid.UUID) (bool, error)
}
