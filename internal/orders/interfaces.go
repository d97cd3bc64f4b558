package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	InsertLineItem(ctx context.Context, item *models.OrderLineItem) error
	UpdateTotals(ctx context.Context, order *models.Order) error
	SumLineItems(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Order, error)
	AttachProfile(ctx context.Context, orderID, profileID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
