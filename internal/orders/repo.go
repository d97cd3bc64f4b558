package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrDuplicateIntent marks an insert rejected because an order already holds the payment
// intent id.
var ErrDuplicateIntent = errors.New("order already exists for payment intent")

// IsDuplicateIntent reports whether err came from a duplicate stripe_pid insert.
func IsDuplicateIntent(err error) bool {
	return errors.Is(err, ErrDuplicateIntent)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order row without its line items. A unique violation on stripe_pid
// is reported as ErrDuplicateIntent.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
	if err == nil {
		return order, nil
	}
	if db.IsUniqueViolation(err, "") {
		if existing, findErr := r.FindByStripePID(ctx, order.StripePID); findErr == nil && existing != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, fmt.Errorf("%w: %v", ErrDuplicateIntent, err), "an order already exists for this payment").
				WithDetails(map[string]any{"stripe_pid": order.StripePID})
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
}

// Delete removes the order and its line items.
func (r *repository) Delete(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orderID).Delete(&models.Order{}).Error
	})
}

func (r *repository) InsertLineItem(ctx context.Context, item *models.OrderLineItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// UpdateTotals persists the derived total columns of order.
func (r *repository) UpdateTotals(ctx context.Context, order *models.Order) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"grand_total":   order.GrandTotal,
			"delivery_cost": order.DeliveryCost,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SumLineItems totals the persisted line items of an order.
func (r *repository) SumLineItems(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&models.OrderLineItem{}).
		Select("COALESCE(SUM(lineitem_total), 0)").
		Where("order_id = ?", orderID).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (r *repository) FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error) {
	return r.findOne(ctx, "stripe_pid = ?", stripePID)
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC").Order("id ASC") }).
		Preload("LineItems.Product").
		Where(query, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return &order, nil
}

// ListByProfile returns the profile's orders, newest first.
func (r *repository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("LineItems.Product").
		Where("user_profile_id = ?", profileID).
		Order("date DESC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (r *repository) AttachProfile(ctx context.Context, orderID, profileID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("user_profile_id", profileID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "attach profile")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}
