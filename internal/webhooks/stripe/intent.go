package stripewebhook

import (
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// PaymentIntent is the part of a succeeded payment intent the reconciler works from.
type PaymentIntent struct {
	ID           string
	Metadata     pkgstripe.Metadata
	ChargeID     string
	AmountMinor  int64
	ReceiptEmail string
	Shipping     *pkgstripe.Party
}

// PaymentIntentFromEvent decodes the intent carried by a payment_intent.* event.
func PaymentIntentFromEvent(event *stripe.Event) (*PaymentIntent, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var raw stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	intent := &PaymentIntent{
		ID:           raw.ID,
		Metadata:     pkgstripe.MetadataFromMap(raw.Metadata),
		AmountMinor:  raw.Amount,
		ReceiptEmail: raw.ReceiptEmail,
	}
	if raw.LatestCharge != nil {
		intent.ChargeID = raw.LatestCharge.ID
	}
	if raw.Shipping != nil {
		party := pkgstripe.Party{Name: raw.Shipping.Name, Phone: raw.Shipping.Phone}
		if raw.Shipping.Address != nil {
			party.Address = pkgstripe.Address{
				Line1:      raw.Shipping.Address.Line1,
				Line2:      raw.Shipping.Address.Line2,
				City:       raw.Shipping.Address.City,
				State:      raw.Shipping.Address.State,
				PostalCode: raw.Shipping.Address.PostalCode,
				Country:    raw.Shipping.Address.Country,
			}
		}
		intent.Shipping = &party
	}
	return intent, nil
}
