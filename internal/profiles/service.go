package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Defaults holds the delivery fields a profile pre-fills checkout with.
type Defaults struct {
	PhoneNumber    string `json:"default_phone_number" validate:"max=20"`
	StreetAddress1 string `json:"default_street_address1" validate:"max=80"`
	StreetAddress2 string `json:"default_street_address2" validate:"max=80"`
	TownOrCity     string `json:"default_town_or_city" validate:"max=40"`
	County         string `json:"default_county" validate:"max=80"`
	Postcode       string `json:"default_postcode" validate:"max=20"`
	Country        string `json:"default_country" validate:"omitempty,iso3166_1_alpha2"`
}

// DefaultsFromShipping copies the delivery fields of an order's shipping details.
func DefaultsFromShipping(s orders.Shipping) Defaults {
	return Defaults{
		PhoneNumber:    s.PhoneNumber,
		StreetAddress1: s.StreetAddress1,
		StreetAddress2: s.StreetAddress2,
		TownOrCity:     s.TownOrCity,
		County:         s.County,
		Postcode:       s.Postcode,
		Country:        s.Country,
	}
}

// ProfileDTO is the API shape of a profile with its order history.
type ProfileDTO struct {
	ID       uuid.UUID         `json:"id"`
	Username string            `json:"username"`
	Defaults Defaults          `json:"defaults"`
	Orders   []orders.OrderDTO `json:"orders"`
}

// Service manages profiles keyed by username.
type Service interface {
	Resolve(ctx context.Context, username string) (*models.UserProfile, error)
	Get(ctx context.Context, username string) (*ProfileDTO, error)
	UpdateDefaults(ctx context.Context, username string, defaults Defaults) (*ProfileDTO, error)
	SaveDefaults(ctx context.Context, profile *models.UserProfile, defaults Defaults) error
}

type orderLister interface {
	ListForProfile(ctx context.Context, profileID uuid.UUID) ([]orders.OrderDTO, error)
}

type service struct {
	repo   *Repository
	orders orderLister
}

// NewService builds the profile service.
func NewService(repo *Repository, orderSvc orderLister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	return &service{repo: repo, orders: orderSvc}, nil
}

// Resolve returns the profile for username, creating it on first use. The anonymous
// shopper has no profile and resolves to nil.
func (s *service) Resolve(ctx context.Context, username string) (*models.UserProfile, error) {
	if auth.IsAnonymous(username) {
		return nil, nil
	}
	return s.repo.FirstOrCreate(ctx, strings.TrimSpace(username))
}

func (s *service) Get(ctx context.Context, username string) (*ProfileDTO, error) {
	profile, err := s.requireProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, profile)
}

func (s *service) UpdateDefaults(ctx context.Context, username string, defaults Defaults) (*ProfileDTO, error) {
	profile, err := s.requireProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.SaveDefaults(ctx, profile, defaults); err != nil {
		return nil, err
	}
	return s.toDTO(ctx, profile)
}

// SaveDefaults overwrites the profile's default delivery fields.
func (s *service) SaveDefaults(ctx context.Context, profile *models.UserProfile, defaults Defaults) error {
	if profile == nil {
		return nil
	}
	profile.DefaultPhoneNumber = strings.TrimSpace(defaults.PhoneNumber)
	profile.DefaultStreetAddress1 = strings.TrimSpace(defaults.StreetAddress1)
	profile.DefaultStreetAddress2 = strings.TrimSpace(defaults.StreetAddress2)
	profile.DefaultTownOrCity = strings.TrimSpace(defaults.TownOrCity)
	profile.DefaultCounty = strings.TrimSpace(defaults.County)
	profile.DefaultPostcode = strings.TrimSpace(defaults.Postcode)
	profile.DefaultCountry = strings.ToUpper(strings.TrimSpace(defaults.Country))
	return s.repo.SaveDefaults(ctx, profile)
}

func (s *service) requireProfile(ctx context.Context, username string) (*models.UserProfile, error) {
	if auth.IsAnonymous(username) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view your profile")
	}
	return s.repo.FirstOrCreate(ctx, strings.TrimSpace(username))
}

func (s *service) toDTO(ctx context.Context, profile *models.UserProfile) (*ProfileDTO, error) {
	history, err := s.orders.ListForProfile(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileDTO{
		ID:       profile.ID,
		Username: profile.Username,
		Defaults: Defaults{
			PhoneNumber:    profile.DefaultPhoneNumber,
			StreetAddress1: profile.DefaultStreetAddress1,
			StreetAddress2: profile.DefaultStreetAddress2,
			TownOrCity:     profile.DefaultTownOrCity,
			County:         profile.DefaultCounty,
			Postcode:       profile.DefaultPostcode,
			Country:        profile.DefaultCountry,
		},
		Orders: history,
	}, nil
}
