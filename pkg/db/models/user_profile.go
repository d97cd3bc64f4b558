package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProfile keeps default delivery information and order history for a username.
type UserProfile struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username              string    `gorm:"column:username;size:150;not null;uniqueIndex"`
	DefaultPhoneNumber    string    `gorm:"column:default_phone_number;size:20;not null;default:''"`
	DefaultStreetAddress1 string    `gorm:"column:default_street_address1;size:80;not null;default:''"`
	DefaultStreetAddress2 string    `gorm:"column:default_street_address2;size:80;not null;default:''"`
	DefaultTownOrCity     string    `gorm:"column:default_town_or_city;size:40;not null;default:''"`
	DefaultCounty         string    `gorm:"column:default_county;size:80;not null;default:''"`
	DefaultPostcode       string    `gorm:"column:default_postcode;size:20;not null;default:''"`
	DefaultCountry        string    `gorm:"column:default_country;size:2;not null;default:''"`
	Orders                []Order   `gorm:"foreignKey:UserProfileID;constraint:OnDelete:SET NULL"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *UserProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
