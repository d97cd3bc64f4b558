package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing that bag entries and line items reference.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU         *string          `gorm:"column:sku;size:254" json:"sku,omitempty"`
	Name        string           `gorm:"column:name;size:254;not null" json:"name"`
	Description string           `gorm:"column:description;type:text;not null;default:''" json:"description"`
	Category    *string          `gorm:"column:category;size:254" json:"category,omitempty"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(6,2);not null" json:"price"`
	HasSizes    bool             `gorm:"column:has_sizes;not null;default:false" json:"has_sizes"`
	Rating      *decimal.Decimal `gorm:"column:rating;type:numeric(6,2)" json:"rating,omitempty"`
	ImageURL    *string          `gorm:"column:image_url;size:1024" json:"image_url,omitempty"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
