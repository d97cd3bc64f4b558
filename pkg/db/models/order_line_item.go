package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem is one product/size/quantity line owned by an Order.
type OrderLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product       *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	ProductSize   *string         `gorm:"column:product_size;size:10"`
	Quantity      int             `gorm:"column:quantity;not null;default:0"`
	LineItemTotal decimal.Decimal `gorm:"column:lineitem_total;type:numeric(6,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// NewOrderLineItem prices a line from the product's current price.
func NewOrderLineItem(product *Product, size *string, quantity int) OrderLineItem {
	return OrderLineItem{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Product:       product,
		ProductSize:   size,
		Quantity:      quantity,
		LineItemTotal: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
