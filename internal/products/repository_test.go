package product

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func seedCatalog(t *testing.T, conn *gorm.DB) []*models.Product {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	shirts, hats := "shirts", "hats"
	products := []*models.Product{
		dbtest.SeedProduct(t, conn, "Plain Shirt", "10.00", false),
		dbtest.SeedProduct(t, conn, "Wool Hat", "5.00", true),
		dbtest.SeedProduct(t, conn, "Striped shirt", "12.50", true),
	}
	categories := []*string{&shirts, &hats, &shirts}
	for i, p := range products {
		require.NoError(t, conn.Model(p).Updates(map[string]any{
			"category":   categories[i],
			"created_at": base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}
	require.NoError(t, conn.Model(products[1]).Update("description", "keeps your SHIRT collar warm").Error)
	return products
}

func TestRepositoryFindByID(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	products := seedCatalog(t, conn)

	found, err := repo.FindByID(context.Background(), products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Plain Shirt", found.Name)
	assert.Equal(t, "10", found.Price.String())

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryListSearchesNameAndDescription(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seedCatalog(t, conn)

	search := "shirt"
	result, err := repo.List(context.Background(), listQuery{Search: &search})
	require.NoError(t, err)

	names := []string{}
	for _, p := range result.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Striped shirt", "Wool Hat", "Plain Shirt"}, names)
}

func TestRepositoryListFiltersCategory(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seedCatalog(t, conn)

	category := "hats"
	result, err := repo.List(context.Background(), listQuery{Category: &category})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Wool Hat", result.Products[0].Name)
}

func TestRepositoryListPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	products := seedCatalog(t, conn)

	first, err := repo.List(context.Background(), listQuery{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Products, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, products[2].ID, first.Products[0].ID)

	second, err := repo.List(context.Background(), listQuery{Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Products, 1)
	assert.Equal(t, products[0].ID, second.Products[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryCategories(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	seedCatalog(t, conn)

	categories, err := repo.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hats", "shirts"}, categories)
}
