package stripewebhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	defaultReconcileAttempts = 5
	defaultReconcileInterval = time.Second
)

var (
	errOrderNotYetCreated = errors.New("order not yet created")
	errOrderIncomplete    = errors.New("order line items not yet written")
)

type orderFinder interface {
	FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error)
}

type orderMaterializer interface {
	Materialize(ctx context.Context, input orders.MaterializeInput, lookup bag.ProductLookup) (*models.Order, error)
}

type chargeRetriever interface {
	RetrieveCharge(ctx context.Context, chargeID string) (*pkgstripe.ChargeDetails, error)
}

type profileResolver interface {
	Resolve(ctx context.Context, username string) (*models.UserProfile, error)
	SaveDefaults(ctx context.Context, profile *models.UserProfile, defaults profiles.Defaults) error
}

type reconcileMetrics interface {
	ObserveReconcile(outcome enums.ReconcileOutcome, attempts int, elapsed time.Duration)
	IncOrderCreated(source enums.OrderSource)
}

// ReconcilerParams wires the reconciler.
type ReconcilerParams struct {
	Orders       orderFinder
	Materializer orderMaterializer
	Charges      chargeRetriever
	Profiles     profileResolver
	Products     bag.ProductLookup
	Metrics      reconcileMetrics
	Logger       *logger.Logger
	Attempts     int
	Interval     time.Duration
}

// Result is the terminal state of one reconciliation.
type Result struct {
	Outcome  enums.ReconcileOutcome
	Order    *models.Order
	Attempts int
}

// Reconciler makes sure exactly one order exists for a succeeded payment intent. It waits a
// bounded time for the checkout submission to create the order and builds it from the
// intent metadata when that never happens.
type Reconciler struct {
	orders       orderFinder
	materializer orderMaterializer
	charges      chargeRetriever
	profiles     profileResolver
	products     bag.ProductLookup
	metrics      reconcileMetrics
	logg         *logger.Logger
	attempts     int
	interval     time.Duration
}

// NewReconciler validates the dependencies and applies default retry settings.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	}
	if params.Charges == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge retriever required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile service required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product lookup required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	attempts := params.Attempts
	if attempts <= 0 {
		attempts = defaultReconcileAttempts
	}
	interval := params.Interval
	if interval < 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{
		orders:       params.Orders,
		materializer: params.Materializer,
		charges:      params.Charges,
		profiles:     params.Profiles,
		products:     params.Products,
		metrics:      params.Metrics,
		logg:         params.Logger,
		attempts:     attempts,
		interval:     interval,
	}, nil
}

// Reconcile runs the search-then-create state machine for intent. A FAILED result carries
// an INTERNAL error so the gateway redelivers the event.
func (r *Reconciler) Reconcile(ctx context.Context, intent *PaymentIntent) (*Result, error) {
	if intent == nil || strings.TrimSpace(intent.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}
	started := time.Now()
	ctx = r.logg.WithPaymentIntent(ctx, intent.ID)

	shipping, err := r.shippingFor(ctx, intent)
	if err != nil {
		return r.fail(ctx, started, 0, err)
	}

	order, attempts, err := r.search(ctx, intent.ID)
	switch {
	case err == nil:
		r.compareLegacyFields(ctx, order, shipping, intent)
		return r.finish(ctx, started, Result{Outcome: enums.ReconcileOutcomeFound, Order: order, Attempts: attempts}), nil
	case !errors.Is(err, errOrderNotYetCreated) && !errors.Is(err, errOrderIncomplete):
		return r.fail(ctx, started, attempts, err)
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{"attempt": attempts, "state": "creating"}), "reconcile.creating")
	order, err = r.create(ctx, intent, shipping)
	if err != nil {
		if orders.IsDuplicateIntent(err) {
			existing, findErr := r.orders.FindByStripePID(ctx, intent.ID)
			if findErr != nil {
				return r.fail(ctx, started, attempts, findErr)
			}
			if !orderComplete(existing) {
				return r.fail(ctx, started, attempts, pkgerrors.New(pkgerrors.CodeInternal, "order for payment intent is still incomplete"))
			}
			return r.finish(ctx, started, Result{Outcome: enums.ReconcileOutcomeFound, Order: existing, Attempts: attempts}), nil
		}
		return r.fail(ctx, started, attempts, err)
	}
	if r.metrics != nil {
		r.metrics.IncOrderCreated(enums.OrderSourceWebhook)
	}
	return r.finish(ctx, started, Result{Outcome: enums.ReconcileOutcomeCreated, Order: order, Attempts: attempts}), nil
}

// search looks the order up by payment intent id, waiting between attempts while the
// checkout submission may still be running. An order whose line items are still being
// written does not count as found.
func (r *Reconciler) search(ctx context.Context, stripePID string) (*models.Order, int, error) {
	attempts := 0
	order, err := retry.DoValue(ctx, r.backoff(), func(ctx context.Context) (*models.Order, error) {
		attempts++
		attemptCtx := r.logg.WithFields(ctx, map[string]any{"attempt": attempts, "state": "searching"})
		order, err := r.orders.FindByStripePID(ctx, stripePID)
		if err == nil {
			if !orderComplete(order) {
				r.logg.Info(attemptCtx, "reconcile.incomplete")
				return nil, retry.RetryableError(errOrderIncomplete)
			}
			r.logg.Info(attemptCtx, "reconcile.found")
			return order, nil
		}
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			r.logg.Info(attemptCtx, "reconcile.not_found")
			return nil, retry.RetryableError(errOrderNotYetCreated)
		}
		return nil, err
	})
	return order, attempts, err
}

// orderComplete reports whether the order holds one line item per row of its original bag
// and its total matches them. Checkout commits line items one at a time after the order row.
func orderComplete(order *models.Order) bool {
	if order == nil {
		return false
	}
	snapshot, err := bag.Decode(order.OriginalBag)
	if err != nil || len(order.LineItems) != len(snapshot.Rows()) {
		return false
	}
	return order.LineItemsTotal().Round(2).Equal(order.GrandTotal)
}

func (r *Reconciler) backoff() retry.Backoff {
	var base retry.Backoff
	if r.interval > 0 {
		base = retry.NewConstant(r.interval)
	} else {
		base = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	return retry.WithMaxRetries(uint64(r.attempts-1), base)
}

// create rebuilds the order from the intent metadata. Materialize removes a partially
// written order itself, so a failure here leaves nothing behind for this intent.
func (r *Reconciler) create(ctx context.Context, intent *PaymentIntent, shipping orders.Shipping) (*models.Order, error) {
	snapshot, err := bag.Decode(intent.Metadata.Bag)
	if err != nil {
		return nil, err
	}
	profile, err := r.profiles.Resolve(ctx, intent.Metadata.Username)
	if err != nil {
		return nil, err
	}
	if profile != nil && intent.Metadata.SaveInfo {
		if err := r.profiles.SaveDefaults(ctx, profile, profiles.DefaultsFromShipping(shipping)); err != nil {
			return nil, err
		}
	}

	input := orders.MaterializeInput{
		Shipping:  shipping,
		Bag:       snapshot,
		StripePID: intent.ID,
		Source:    enums.OrderSourceWebhook,
	}
	if profile != nil {
		input.UserProfileID = &profile.ID
	}
	return r.materializer.Materialize(ctx, input, r.products)
}

// shippingFor derives the order's customer fields from the intent's charge. Name, phone and
// address come from the shipping details, falling back to billing.
func (r *Reconciler) shippingFor(ctx context.Context, intent *PaymentIntent) (orders.Shipping, error) {
	var billing, shipping pkgstripe.Party
	if intent.ChargeID != "" {
		details, err := r.charges.RetrieveCharge(ctx, intent.ChargeID)
		if err != nil {
			return orders.Shipping{}, err
		}
		billing, shipping = details.Billing, details.Shipping
	}
	if shipping.Name == "" && intent.Shipping != nil {
		shipping = *intent.Shipping
	}
	if billing.Email == "" {
		billing.Email = intent.ReceiptEmail
	}

	contact := shipping
	if contact.Name == "" {
		contact = billing
	}
	address := shipping.Address
	if address.Line1 == "" {
		address = billing.Address
	}
	phone := shipping.Phone
	if phone == "" {
		phone = billing.Phone
	}
	return orders.Shipping{
		FullName:       contact.Name,
		Email:          billing.Email,
		PhoneNumber:    phone,
		Country:        address.Country,
		Postcode:       address.PostalCode,
		TownOrCity:     address.City,
		StreetAddress1: address.Line1,
		StreetAddress2: address.Line2,
		County:         address.State,
	}.Normalize(), nil
}

// compareLegacyFields reports orders whose stored fields differ from what the gateway
// reports. The payment intent id decides the match; differences are only logged.
func (r *Reconciler) compareLegacyFields(ctx context.Context, order *models.Order, shipping orders.Shipping, intent *PaymentIntent) {
	mismatched := legacyMismatches(order, shipping, intent)
	if len(mismatched) == 0 {
		return
	}
	r.logg.Warn(r.logg.WithField(ctx, "mismatched_fields", mismatched), "reconcile.field_mismatch")
}

func legacyMismatches(order *models.Order, shipping orders.Shipping, intent *PaymentIntent) []string {
	fields := []struct {
		name   string
		stored string
		actual string
	}{
		{"full_name", order.FullName, shipping.FullName},
		{"email", order.Email, shipping.Email},
		{"phone_number", order.PhoneNumber, shipping.PhoneNumber},
		{"country", order.Country, shipping.Country},
		{"postcode", order.Postcode, shipping.Postcode},
		{"town_or_city", order.TownOrCity, shipping.TownOrCity},
		{"street_address1", order.StreetAddress1, shipping.StreetAddress1},
		{"street_address2", order.StreetAddress2, shipping.StreetAddress2},
		{"county", order.County, shipping.County},
	}
	var mismatched []string
	for _, field := range fields {
		if !strings.EqualFold(strings.TrimSpace(field.stored), strings.TrimSpace(field.actual)) {
			mismatched = append(mismatched, field.name)
		}
	}
	if intent.Metadata.Bag != "" && order.OriginalBag != intent.Metadata.Bag {
		mismatched = append(mismatched, "original_bag")
	}
	if intent.AmountMinor > 0 && !order.AmountDue().Equal(pricing.FromMinorUnits(intent.AmountMinor)) {
		mismatched = append(mismatched, "grand_total")
	}
	return mismatched
}

func (r *Reconciler) finish(ctx context.Context, started time.Time, result Result) *Result {
	if r.metrics != nil {
		r.metrics.ObserveReconcile(result.Outcome, result.Attempts, time.Since(started))
	}
	fields := map[string]any{"attempt": result.Attempts, "outcome": result.Outcome.String()}
	if result.Order != nil {
		fields["order_number"] = result.Order.OrderNumber
	}
	r.logg.Info(r.logg.WithFields(ctx, fields), "reconcile.complete")
	return &result
}

func (r *Reconciler) fail(ctx context.Context, started time.Time, attempts int, cause error) (*Result, error) {
	result := r.finish(ctx, started, Result{Outcome: enums.ReconcileOutcomeFailed, Attempts: attempts})
	r.logg.Error(r.logg.WithField(ctx, "attempt", attempts), "reconcile.failed", cause)
	if typed := pkgerrors.As(cause); typed != nil && typed.Code() == pkgerrors.CodeInternal {
		return result, cause
	}
	return result, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "reconcile payment intent")
}
