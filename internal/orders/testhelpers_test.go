package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

var testRule = pricing.Rule{
	FreeDeliveryThreshold:      decimal.RequireFromString("50"),
	StandardDeliveryPercentage: decimal.NewFromInt(10),
}

type fixture struct {
	conn         *gorm.DB
	repo         Repository
	products     *product.Repository
	materializer *Materializer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	materializer, err := NewMaterializer(repo, db.NewFromGorm(conn), testRule, testLogger())
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}
	return &fixture{
		conn:         conn,
		repo:         repo,
		products:     product.NewRepository(conn),
		materializer: materializer,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

func validShipping() Shipping {
	return Shipping{
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		PhoneNumber:    "+353 1 555 0100",
		Country:        "ie",
		Postcode:       "D02 X285",
		TownOrCity:     "Dublin",
		StreetAddress1: "1 Main Street",
		County:         "Dublin",
	}
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return count
}

func (f *fixture) countLineItems(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(&models.OrderLineItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count line items: %v", err)
	}
	return count
}

// flakyRepo fails line item inserts once failAfter inserts succeeded.
type flakyRepo struct {
	Repository
	inserts   *int
	failAfter int
}

func newFlakyRepo(inner Repository, failAfter int) *flakyRepo {
	return &flakyRepo{Repository: inner, inserts: new(int), failAfter: failAfter}
}

func (r *flakyRepo) WithTx(tx *gorm.DB) Repository {
	return &flakyRepo{Repository: r.Repository.WithTx(tx), inserts: r.inserts, failAfter: r.failAfter}
}

func (r *flakyRepo) InsertLineItem(ctx context.Context, item *models.OrderLineItem) error {
	if *r.inserts >= r.failAfter {
		return errors.New("disk full")
	}
	*r.inserts++
	return r.Repository.InsertLineItem(ctx, item)
}
