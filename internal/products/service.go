package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes the read-only catalog.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// ListProductsInput captures browse filters. A non-nil Query must not be blank.
type ListProductsInput struct {
	Query      *string
	Category   *string
	Pagination pagination.Params
}

// ListResult is one page of products.
type ListResult struct {
	Products   []models.Product `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type catalogRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, query listQuery) (*ListResult, error)
	Categories(ctx context.Context) ([]string, error)
}

type service struct {
	repo catalogRepository
}

// NewService constructs the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ListResult, error) {
	if input.Query != nil && strings.TrimSpace(*input.Query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "you didn't enter any search criteria").
			WithDetails(map[string]string{"q": "required"})
	}
	var category *string
	if input.Category != nil && strings.TrimSpace(*input.Category) != "" {
		trimmed := strings.TrimSpace(*input.Category)
		category = &trimmed
	}
	return s.repo.List(ctx, listQuery{
		Search:     input.Query,
		Category:   category,
		Pagination: input.Pagination,
	})
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListCategories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}
