package bag

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// ProductLookup resolves product ids to catalog products. Missing products are reported
// with a NOT_FOUND error.
type ProductLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Line is a flattened bag row joined with its product.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Size      *string         `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	Product   *models.Product `json:"product"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Summary is the read-only projection of a bag.
type Summary struct {
	Items                 []Line          `json:"items"`
	Total                 decimal.Decimal `json:"total"`
	ProductCount          int             `json:"product_count"`
	Delivery              decimal.Decimal `json:"delivery"`
	FreeDeliveryDelta     decimal.Decimal `json:"free_delivery_delta"`
	FreeDeliveryThreshold decimal.Decimal `json:"free_delivery_threshold"`
	GrandTotal            decimal.Decimal `json:"grand_total"`
}

// Aggregator derives totals and delivery charges for a bag.
type Aggregator struct {
	rule pricing.Rule
}

// NewAggregator builds an aggregator applying rule.
func NewAggregator(rule pricing.Rule) *Aggregator {
	return &Aggregator{rule: rule}
}

// Project resolves every row of b and accumulates the summary using exact decimals.
func (a *Aggregator) Project(ctx context.Context, b Bag, lookup ProductLookup) (*Summary, error) {
	summary := &Summary{
		Items:                 []Line{},
		Total:                 decimal.Zero,
		FreeDeliveryThreshold: a.rule.FreeDeliveryThreshold,
	}

	cache := map[uuid.UUID]*models.Product{}
	for _, row := range b.Rows() {
		product, ok := cache[row.ProductID]
		if !ok {
			found, err := ResolveProduct(ctx, lookup, row.ProductID)
			if err != nil {
				return nil, err
			}
			product = found
			cache[row.ProductID] = product
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(row.Quantity)))
		summary.Items = append(summary.Items, Line{
			ProductID: row.ProductID,
			Size:      row.Size,
			Quantity:  row.Quantity,
			Product:   product,
			LineTotal: lineTotal,
		})
		summary.Total = summary.Total.Add(lineTotal)
		summary.ProductCount += row.Quantity
	}

	summary.Delivery, summary.FreeDeliveryDelta = a.rule.Delivery(summary.Total)
	summary.GrandTotal = summary.Total.Add(summary.Delivery)
	return summary, nil
}

// ResolveProduct loads productID, turning a missing product into a ProductNotFound error
// that tells the caller to send the customer back to the bag.
func ResolveProduct(ctx context.Context, lookup ProductLookup, productID uuid.UUID) (*models.Product, error) {
	product, err := lookup.FindByID(ctx, productID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, ProductNotFound(productID)
		}
		return nil, err
	}
	if product == nil {
		return nil, ProductNotFound(productID)
	}
	return product, nil
}

// ResolveVariant loads productID and checks that size fits it: products with sizes need a
// size label and the others must not carry one.
func ResolveVariant(ctx context.Context, lookup ProductLookup, productID uuid.UUID, size *string) (*models.Product, error) {
	product, err := ResolveProduct(ctx, lookup, productID)
	if err != nil {
		return nil, err
	}
	if err := CheckVariant(product, size); err != nil {
		return nil, err
	}
	return product, nil
}

// CheckVariant fails with STATE_CONFLICT when size does not match product.HasSizes.
func CheckVariant(product *models.Product, size *string) error {
	_, sized, err := normalizeSize(size)
	if err != nil {
		return err
	}
	details := map[string]any{"product_id": product.ID.String()}
	switch {
	case product.HasSizes && !sized:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "please choose a size for this product").WithDetails(details)
	case !product.HasSizes && sized:
		details["size"] = *size
		return pkgerrors.New(pkgerrors.CodeStateConflict, "this product does not come in sizes").WithDetails(details)
	}
	return nil
}

// ProductNotFound reports a bag entry that references a product missing from the catalog.
func ProductNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "one of the products in your bag wasn't found in our database").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"redirect":   "bag",
		})
}
