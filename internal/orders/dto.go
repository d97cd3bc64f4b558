package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Date           time.Time       `json:"date"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phone_number"`
	Country        string          `json:"country"`
	Postcode       string          `json:"postcode"`
	TownOrCity     string          `json:"town_or_city"`
	StreetAddress1 string          `json:"street_address1"`
	StreetAddress2 string          `json:"street_address2"`
	County         string          `json:"county"`
	LineItems      []LineItemDTO   `json:"line_items"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	AmountDue      decimal.Decimal `json:"amount_due"`
}

// LineItemDTO is the API shape of an order line item.
type LineItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	ProductSize   *string         `json:"product_size,omitempty"`
	Quantity      int             `json:"quantity"`
	LineItemTotal decimal.Decimal `json:"lineitem_total"`
}

// FromModel maps a persisted order to its DTO.
func FromModel(order *models.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		dto := LineItemDTO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			ProductSize:   item.ProductSize,
			Quantity:      item.Quantity,
			LineItemTotal: item.LineItemTotal,
		}
		if item.Product != nil {
			dto.ProductName = item.Product.Name
		}
		items = append(items, dto)
	}
	return OrderDTO{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Date:           order.Date,
		FullName:       order.FullName,
		Email:          order.Email,
		PhoneNumber:    order.PhoneNumber,
		Country:        order.Country,
		Postcode:       order.Postcode,
		TownOrCity:     order.TownOrCity,
		StreetAddress1: order.StreetAddress1,
		StreetAddress2: order.StreetAddress2,
		County:         order.County,
		LineItems:      items,
		GrandTotal:     order.GrandTotal,
		DeliveryCost:   order.DeliveryCost,
		AmountDue:      order.AmountDue(),
	}
}

// FromModels maps a list of orders.
func FromModels(list []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(list))
	for i := range list {
		out = append(out, FromModel(&list[i]))
	}
	return out
}
