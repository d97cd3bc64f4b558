package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// Order is the persisted record of a completed purchase. GrandTotal and DeliveryCost are
// derived from LineItems and only change through AddLineItem/RemoveLineItem.
type Order struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string          `gorm:"column:order_number;size:32;not null;uniqueIndex"`
	UserProfileID  *uuid.UUID      `gorm:"column:user_profile_id;type:uuid;index"`
	FullName       string          `gorm:"column:full_name;size:50;not null"`
	Email          string          `gorm:"column:email;size:254;not null"`
	PhoneNumber    string          `gorm:"column:phone_number;size:20;not null"`
	Country        string          `gorm:"column:country;size:2;not null"`
	Postcode       string          `gorm:"column:postcode;size:20;not null;default:''"`
	TownOrCity     string          `gorm:"column:town_or_city;size:40;not null"`
	StreetAddress1 string          `gorm:"column:street_address1;size:80;not null"`
	StreetAddress2 string          `gorm:"column:street_address2;size:80;not null;default:''"`
	County         string          `gorm:"column:county;size:80;not null;default:''"`
	Date           time.Time       `gorm:"column:date;autoCreateTime"`
	DeliveryCost   decimal.Decimal `gorm:"column:delivery_cost;type:numeric(6,2);not null;default:0"`
	GrandTotal     decimal.Decimal `gorm:"column:grand_total;type:numeric(10,2);not null;default:0"`
	OriginalBag    string          `gorm:"column:original_bag;type:text;not null;default:''"`
	StripePID      string          `gorm:"column:stripe_pid;size:254;not null;uniqueIndex"`
	LineItems      []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber()
	}
	return nil
}

// GenerateOrderNumber returns a random 32 character uppercase hex token.
func GenerateOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// AddLineItem attaches item to the order and returns the recomputed grand total.
func (o *Order) AddLineItem(item OrderLineItem, rule pricing.Rule) decimal.Decimal {
	item.OrderID = o.ID
	o.LineItems = append(o.LineItems, item)
	o.recalculate(rule)
	return o.GrandTotal
}

// RemoveLineItem detaches the line item with id and returns the recomputed grand total.
// The bool is false when the order does not own such a line item.
func (o *Order) RemoveLineItem(id uuid.UUID, rule pricing.Rule) (decimal.Decimal, bool) {
	for i, item := range o.LineItems {
		if item.ID != id {
			continue
		}
		o.LineItems = append(o.LineItems[:i], o.LineItems[i+1:]...)
		o.recalculate(rule)
		return o.GrandTotal, true
	}
	return o.GrandTotal, false
}

// LineItemsTotal sums the line totals currently attached to the order.
func (o *Order) LineItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.LineItems {
		total = total.Add(item.LineItemTotal)
	}
	return total
}

// AmountDue is what the customer is charged: grand total plus delivery.
func (o *Order) AmountDue() decimal.Decimal {
	return o.GrandTotal.Add(o.DeliveryCost)
}

func (o *Order) recalculate(rule pricing.Rule) {
	o.GrandTotal = o.LineItemsTotal().Round(2)
	delivery, _ := rule.Delivery(o.GrandTotal)
	o.DeliveryCost = delivery.Round(2)
}
