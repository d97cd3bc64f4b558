package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

// Shipping is the fixed customer and delivery schema of an order.
type Shipping struct {
	FullName       string `json:"full_name" validate:"required,max=50"`
	Email          string `json:"email" validate:"required,email,max=254"`
	PhoneNumber    string `json:"phone_number" validate:"required,max=20"`
	Country        string `json:"country" validate:"required,iso3166_1_alpha2"`
	Postcode       string `json:"postcode" validate:"max=20"`
	TownOrCity     string `json:"town_or_city" validate:"required,max=40"`
	StreetAddress1 string `json:"street_address1" validate:"required,max=80"`
	StreetAddress2 string `json:"street_address2" validate:"max=80"`
	County         string `json:"county" validate:"max=80"`
}

// Normalize trims every field and upper-cases the country code.
func (s Shipping) Normalize() Shipping {
	return Shipping{
		FullName:       strings.TrimSpace(s.FullName),
		Email:          strings.TrimSpace(s.Email),
		PhoneNumber:    strings.TrimSpace(s.PhoneNumber),
		Country:        strings.ToUpper(strings.TrimSpace(s.Country)),
		Postcode:       strings.TrimSpace(s.Postcode),
		TownOrCity:     strings.TrimSpace(s.TownOrCity),
		StreetAddress1: strings.TrimSpace(s.StreetAddress1),
		StreetAddress2: strings.TrimSpace(s.StreetAddress2),
		County:         strings.TrimSpace(s.County),
	}
}

// FitColumns cuts every field to its column size. Gateway data is stored as reported
// instead of being checked against the checkout form schema.
func (s Shipping) FitColumns() Shipping {
	return Shipping{
		FullName:       truncate(s.FullName, 50),
		Email:          truncate(s.Email, 254),
		PhoneNumber:    truncate(s.PhoneNumber, 20),
		Country:        truncate(s.Country, 2),
		Postcode:       truncate(s.Postcode, 20),
		TownOrCity:     truncate(s.TownOrCity, 40),
		StreetAddress1: truncate(s.StreetAddress1, 80),
		StreetAddress2: truncate(s.StreetAddress2, 80),
		County:         truncate(s.County, 80),
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}

// MaterializeInput is everything needed to persist an order for a bag snapshot. Source
// defaults to the checkout form; webhook orders skip the form schema.
type MaterializeInput struct {
	Shipping      Shipping
	Bag           bag.Bag
	StripePID     string
	UserProfileID *uuid.UUID
	Source        enums.OrderSource
}

// Materializer converts bag snapshots into persisted orders with line items.
type Materializer struct {
	repo Repository
	tx   txRunner
	rule pricing.Rule
	logg *logger.Logger
}

// NewMaterializer wires the materializer dependencies.
func NewMaterializer(repo Repository, tx txRunner, rule pricing.Rule, logg *logger.Logger) (*Materializer, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Materializer{repo: repo, tx: tx, rule: rule, logg: logg}, nil
}

// Materialize validates the shipping fields of checkout orders, creates the order and attaches one line item
// per bag row. Any failure after the order row exists deletes it again. A duplicate payment
// intent is returned as ErrDuplicateIntent with nothing written.
func (m *Materializer) Materialize(ctx context.Context, input MaterializeInput, lookup bag.ProductLookup) (*models.Order, error) {
	if lookup == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	shipping := input.Shipping.Normalize()
	if input.Source == enums.OrderSourceWebhook {
		shipping = shipping.FitColumns()
	} else if err := validation.Struct(&shipping); err != nil {
		return nil, err
	}
	stripePID := strings.TrimSpace(input.StripePID)
	if stripePID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent is required").
			WithDetails(map[string]string{"stripe_pid": "is required"})
	}
	if input.Bag.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "there's nothing in your bag")
	}

	originalBag, err := bag.Encode(input.Bag)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bag")
	}

	order := &models.Order{
		UserProfileID:  input.UserProfileID,
		FullName:       shipping.FullName,
		Email:          shipping.Email,
		PhoneNumber:    shipping.PhoneNumber,
		Country:        shipping.Country,
		Postcode:       shipping.Postcode,
		TownOrCity:     shipping.TownOrCity,
		StreetAddress1: shipping.StreetAddress1,
		StreetAddress2: shipping.StreetAddress2,
		County:         shipping.County,
		OriginalBag:    originalBag,
		StripePID:      stripePID,
	}
	if _, err := m.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	ctx = m.logg.WithFields(ctx, map[string]any{"order_number": order.OrderNumber, "stripe_pid": stripePID})

	for _, row := range input.Bag.Rows() {
		product, err := bag.ResolveVariant(ctx, lookup, row.ProductID, row.Size)
		if err != nil {
			return nil, m.Discard(ctx, order, err)
		}
		item := models.NewOrderLineItem(product, row.Size, row.Quantity)
		if err := m.AddLineItem(ctx, order, item); err != nil {
			return nil, m.Discard(ctx, order, err)
		}
	}

	if err := m.verifyTotals(ctx, order); err != nil {
		return nil, m.Discard(ctx, order, err)
	}
	return order, nil
}

// AddLineItem persists item and the order's recomputed totals in one transaction. The
// in-memory order only keeps the item when the transaction commits.
func (m *Materializer) AddLineItem(ctx context.Context, order *models.Order, item models.OrderLineItem) error {
	item.OrderID = order.ID
	previousTotal, previousDelivery := order.GrandTotal, order.DeliveryCost

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)
		if err := repo.InsertLineItem(ctx, &item); err != nil {
			return err
		}
		order.AddLineItem(item, m.rule)
		return repo.UpdateTotals(ctx, order)
	})
	if err != nil {
		if _, removed := order.RemoveLineItem(item.ID, m.rule); !removed {
			order.GrandTotal, order.DeliveryCost = previousTotal, previousDelivery
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add order line item")
	}
	return nil
}

// RemoveLineItem deletes a line item and persists the recomputed totals.
func (m *Materializer) RemoveLineItem(ctx context.Context, order *models.Order, itemID uuid.UUID) error {
	var removed models.OrderLineItem
	for _, item := range order.LineItems {
		if item.ID == itemID {
			removed = item
			break
		}
	}
	if removed.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
	}

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("id = ? AND order_id = ?", itemID, order.ID).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		order.RemoveLineItem(itemID, m.rule)
		return m.repo.WithTx(tx).UpdateTotals(ctx, order)
	})
	if err != nil {
		order.AddLineItem(removed, m.rule)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove order line item")
	}
	return nil
}

// Discard deletes order and returns cause, combined with the delete failure if any.
func (m *Materializer) Discard(ctx context.Context, order *models.Order, cause error) error {
	if order == nil || order.ID == uuid.Nil {
		return cause
	}
	if err := m.repo.Delete(ctx, order.ID); err != nil {
		m.logg.Error(ctx, "orders.rollback_failed", err)
		return multierr.Append(cause, fmt.Errorf("delete order %s: %w", order.OrderNumber, err))
	}
	m.logg.Warn(ctx, "orders.rolled_back")
	return cause
}

func (m *Materializer) verifyTotals(ctx context.Context, order *models.Order) error {
	persisted, err := m.repo.SumLineItems(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum line items")
	}
	if !persisted.Round(2).Equal(order.GrandTotal) {
		driftCtx := m.logg.WithFields(ctx, map[string]any{
			"persisted_total": persisted.String(),
			"grand_total":     order.GrandTotal.String(),
		})
		m.logg.Error(driftCtx, "orders.total_drift", fmt.Errorf("line items sum to %s, order total is %s", persisted, order.GrandTotal))
		return pkgerrors.New(pkgerrors.CodeInternal, "order total does not match its line items")
	}
	return nil
}
