package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service exposes order reads for confirmation and history pages.
type Service interface {
	GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderDTO, error)
	ListForProfile(ctx context.Context, profileID uuid.UUID) ([]OrderDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the order read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	number := strings.ToUpper(strings.TrimSpace(orderNumber))
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByOrderNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) ListForProfile(ctx context.Context, profileID uuid.UUID) ([]OrderDTO, error) {
	list, err := s.repo.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return FromModels(list), nil
}
