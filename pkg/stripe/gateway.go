package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Metadata keys attached to payment intents.
const (
	MetadataBag      = "bag"
	MetadataSaveInfo = "save_info"
	MetadataUsername = "username"
)

// Intent is a created payment intent.
type Intent struct {
	ID           string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

// Metadata is what checkout attaches to an intent so the webhook can rebuild the order.
type Metadata struct {
	Bag      string
	SaveInfo bool
	Username string
}

// ToMap renders the metadata in the gateway's string map form.
func (m Metadata) ToMap() map[string]string {
	return map[string]string{
		MetadataBag:      m.Bag,
		MetadataSaveInfo: strconv.FormatBool(m.SaveInfo),
		MetadataUsername: m.Username,
	}
}

// MetadataFromMap parses intent metadata. save_info accepts any strconv boolean spelling,
// case-insensitively.
func MetadataFromMap(raw map[string]string) Metadata {
	saveInfo, _ := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw[MetadataSaveInfo])))
	return Metadata{
		Bag:      raw[MetadataBag],
		SaveInfo: saveInfo,
		Username: raw[MetadataUsername],
	}
}

// Address is a postal address reported by the gateway.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Party is a named contact with an address.
type Party struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

// ChargeDetails is the subset of a charge the reconciler needs.
type ChargeDetails struct {
	ID          string
	Billing     Party
	Shipping    Party
	AmountMinor int64
}

// IntentIDFromClientSecret extracts the intent id from a client secret of the form
// "<intent id>_secret_<token>".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(strings.TrimSpace(clientSecret), "_secret")
	if !ok || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid client secret").
			WithDetails(map[string]string{"client_secret": "is invalid"})
	}
	return id, nil
}

type paymentAPI interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	UpdateIntent(ctx context.Context, id string, params *stripe.PaymentIntentUpdateParams) (*stripe.PaymentIntent, error)
	RetrieveCharge(ctx context.Context, id string, params *stripe.ChargeRetrieveParams) (*stripe.Charge, error)
}

// clientAPI calls the v1 services of the configured Stripe client.
type clientAPI struct {
	client *stripe.Client
}

func (c clientAPI) CreateIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return c.client.V1PaymentIntents.Create(ctx, params)
}

func (c clientAPI) UpdateIntent(ctx context.Context, id string, params *stripe.PaymentIntentUpdateParams) (*stripe.PaymentIntent, error) {
	return c.client.V1PaymentIntents.Update(ctx, id, params)
}

func (c clientAPI) RetrieveCharge(ctx context.Context, id string, params *stripe.ChargeRetrieveParams) (*stripe.Charge, error) {
	return c.client.V1Charges.Retrieve(ctx, id, params)
}

// Gateway is the storefront's boundary to the payment processor. Calls pass through a
// circuit breaker; gateway failures surface as DEPENDENCY errors.
type Gateway struct {
	api     paymentAPI
	breaker *gobreaker.CircuitBreaker[any]
}

// NewGateway builds a gateway over the initialized Stripe client.
func NewGateway(client *Client, cfg config.StripeConfig) (*Gateway, error) {
	if client.API() == nil {
		return nil, errors.New("stripe client is required")
	}
	return newGateway(clientAPI{client: client.API()}, cfg.BreakerFailures, cfg.BreakerTimeout), nil
}

func newGateway(api paymentAPI, failures uint32, timeout time.Duration) *Gateway {
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
	}
	return &Gateway{api: api, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

// CreateIntent opens a payment intent for amountMinor units of currency.
func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(strings.ToLower(currency)),
	}

	result, err := g.breaker.Execute(func() (any, error) {
		return g.api.CreateIntent(ctx, params)
	})
	if err != nil {
		return nil, gatewayError(err, "create payment intent")
	}
	intent := result.(*stripe.PaymentIntent)
	return &Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// AttachMetadata replaces the storefront metadata on intentID.
func (g *Gateway) AttachMetadata(ctx context.Context, intentID string, metadata Metadata) error {
	if strings.TrimSpace(intentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	params := &stripe.PaymentIntentUpdateParams{}
	for key, value := range metadata.ToMap() {
		params.AddMetadata(key, value)
	}

	if _, err := g.breaker.Execute(func() (any, error) {
		return g.api.UpdateIntent(ctx, intentID, params)
	}); err != nil {
		return gatewayError(err, "attach payment metadata")
	}
	return nil
}

// RetrieveCharge loads billing and shipping details of chargeID.
func (g *Gateway) RetrieveCharge(ctx context.Context, chargeID string) (*ChargeDetails, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required")
	}
	result, err := g.breaker.Execute(func() (any, error) {
		return g.api.RetrieveCharge(ctx, chargeID, &stripe.ChargeRetrieveParams{})
	})
	if err != nil {
		return nil, gatewayError(err, "retrieve charge")
	}
	return ChargeDetailsFromCharge(result.(*stripe.Charge)), nil
}

// ChargeDetailsFromCharge maps a Stripe charge to ChargeDetails.
func ChargeDetailsFromCharge(ch *stripe.Charge) *ChargeDetails {
	if ch == nil {
		return nil
	}
	details := &ChargeDetails{ID: ch.ID, AmountMinor: ch.Amount}
	if ch.BillingDetails != nil {
		details.Billing = Party{
			Name:    ch.BillingDetails.Name,
			Email:   ch.BillingDetails.Email,
			Phone:   ch.BillingDetails.Phone,
			Address: addressFrom(ch.BillingDetails.Address),
		}
	}
	if ch.Shipping != nil {
		details.Shipping = Party{
			Name:    ch.Shipping.Name,
			Phone:   ch.Shipping.Phone,
			Address: addressFrom(ch.Shipping.Address),
		}
	}
	return details
}

func addressFrom(addr *stripe.Address) Address {
	if addr == nil {
		return Address{}
	}
	return Address{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500
	}
	return false
}

func gatewayError(err error, action string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway temporarily unavailable").
			WithDetails(map[string]any{"retryable": true})
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: %s", action, stripeErr.Msg)).
			WithDetails(map[string]any{"retryable": true})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action).
		WithDetails(map[string]any{"retryable": true})
}
