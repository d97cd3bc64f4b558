package profiles

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository persists user profiles.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a profile repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByUsername loads a profile, returning NOT_FOUND when absent.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	return &profile, nil
}

// FirstOrCreate returns the profile for username, creating an empty one when missing.
// Concurrent creators converge on the same row.
func (r *Repository) FirstOrCreate(ctx context.Context, username string) (*models.UserProfile, error) {
	profile := &models.UserProfile{Username: username}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
	}
	return r.FindByUsername(ctx, username)
}

// SaveDefaults writes the default delivery fields of profile.
func (r *Repository) SaveDefaults(ctx context.Context, profile *models.UserProfile) error {
	err := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"default_phone_number":    profile.DefaultPhoneNumber,
			"default_street_address1": profile.DefaultStreetAddress1,
			"default_street_address2": profile.DefaultStreetAddress2,
			"default_town_or_city":    profile.DefaultTownOrCity,
			"default_county":          profile.DefaultCounty,
			"default_postcode":        profile.DefaultPostcode,
			"default_country":         profile.DefaultCountry,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save profile defaults")
	}
	return nil
}
