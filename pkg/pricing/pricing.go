package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var hundred = decimal.NewFromInt(100)

// Rule applies the standard delivery charge below the free delivery threshold.
type Rule struct {
	FreeDeliveryThreshold      decimal.Decimal
	StandardDeliveryPercentage decimal.Decimal
}

// FromConfig builds the rule from the storefront pricing constants.
func FromConfig(cfg config.StoreConfig) Rule {
	return Rule{
		FreeDeliveryThreshold:      cfg.FreeDeliveryThreshold,
		StandardDeliveryPercentage: cfg.StandardDeliveryPercentage,
	}
}

// Delivery returns the delivery charge for total and how much more must be spent to
// qualify for free delivery. Both are zero at or above the threshold.
func (r Rule) Delivery(total decimal.Decimal) (delivery, delta decimal.Decimal) {
	if total.LessThan(r.FreeDeliveryThreshold) {
		delivery = total.Mul(r.StandardDeliveryPercentage).Div(hundred)
		delta = r.FreeDeliveryThreshold.Sub(total)
		return delivery, delta
	}
	return decimal.Zero, decimal.Zero
}

// ToMinorUnits converts an amount to an integer count of minor currency units, rounding
// half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts minor currency units back to a two-place amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
