package bag

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

type stubLookup map[uuid.UUID]*models.Product

func (s stubLookup) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

var testRule = pricing.Rule{
	FreeDeliveryThreshold:      decimal.RequireFromString("50"),
	StandardDeliveryPercentage: decimal.NewFromInt(10),
}

func TestProjectBelowThreshold(t *testing.T) {
	shirt := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("10.00")}
	hat := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("5.00"), HasSizes: true}
	lookup := stubLookup{shirt.ID: shirt, hat.ID: hat}

	b := New()
	require.NoError(t, b.Add(shirt.ID, 3, nil))
	require.NoError(t, b.Add(hat.ID, 1, strPtr("M")))
	require.NoError(t, b.Add(hat.ID, 2, strPtr("L")))

	summary, err := NewAggregator(testRule).Project(context.Background(), b, lookup)
	require.NoError(t, err)

	assert.Len(t, summary.Items, 3)
	assert.Equal(t, 6, summary.ProductCount)
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("45.00")), "total %s", summary.Total)
	assert.True(t, summary.Delivery.Equal(decimal.RequireFromString("4.50")), "delivery %s", summary.Delivery)
	assert.True(t, summary.FreeDeliveryDelta.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, summary.GrandTotal.Equal(decimal.RequireFromString("49.50")))
	assert.True(t, summary.FreeDeliveryThreshold.Equal(decimal.RequireFromString("50")))
}

func TestProjectAtThresholdHasFreeDelivery(t *testing.T) {
	item := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("25.00")}
	b := New()
	require.NoError(t, b.Add(item.ID, 2, nil))

	summary, err := NewAggregator(testRule).Project(context.Background(), b, stubLookup{item.ID: item})
	require.NoError(t, err)

	assert.True(t, summary.Delivery.IsZero())
	assert.True(t, summary.FreeDeliveryDelta.IsZero())
	assert.True(t, summary.GrandTotal.Equal(decimal.RequireFromString("50.00")))
}

func TestProjectTotalsAreExact(t *testing.T) {
	item := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("0.10")}
	other := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("0.20")}
	b := New()
	require.NoError(t, b.Add(item.ID, 1, nil))
	require.NoError(t, b.Add(other.ID, 1, nil))

	summary, err := NewAggregator(testRule).Project(context.Background(), b, stubLookup{item.ID: item, other.ID: other})
	require.NoError(t, err)

	assert.Equal(t, "0.3", summary.Total.String())
	assert.Equal(t, int64(33), pricing.ToMinorUnits(summary.GrandTotal))
}

func TestProjectEmptyBag(t *testing.T) {
	summary, err := NewAggregator(testRule).Project(context.Background(), New(), stubLookup{})
	require.NoError(t, err)

	assert.Empty(t, summary.Items)
	assert.True(t, summary.Total.IsZero())
	assert.True(t, summary.FreeDeliveryDelta.Equal(decimal.RequireFromString("50")))
}

func TestProjectMissingProduct(t *testing.T) {
	b := New()
	missing := uuid.New()
	require.NoError(t, b.Add(missing, 1, nil))

	_, err := NewAggregator(testRule).Project(context.Background(), b, stubLookup{})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, map[string]any{"product_id": missing.String(), "redirect": "bag"}, typed.Details())
}

func TestResolveVariantMatchesProductSizes(t *testing.T) {
	shirt := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("10.00")}
	hat := &models.Product{ID: uuid.New(), Price: decimal.RequireFromString("5.00"), HasSizes: true}
	lookup := stubLookup{shirt.ID: shirt, hat.ID: hat}
	ctx := context.Background()

	_, err := ResolveVariant(ctx, lookup, shirt.ID, nil)
	require.NoError(t, err)
	_, err = ResolveVariant(ctx, lookup, hat.ID, strPtr("M"))
	require.NoError(t, err)

	_, err = ResolveVariant(ctx, lookup, shirt.ID, strPtr("XL"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	_, err = ResolveVariant(ctx, lookup, hat.ID, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	_, err = ResolveVariant(ctx, lookup, hat.ID, strPtr("  "))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	_, err = ResolveVariant(ctx, lookup, uuid.New(), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
