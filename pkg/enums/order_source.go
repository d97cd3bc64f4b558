package enums

// OrderSource names the path that persisted an order.
type OrderSource string

const (
	OrderSourceCheckout OrderSource = "checkout"
	OrderSourceWebhook  OrderSource = "webhook"
)

// String implements fmt.Stringer.
func (s OrderSource) String() string {
	return string(s)
}
