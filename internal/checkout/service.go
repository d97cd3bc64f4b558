package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const emptyBagMessage = "there's nothing in your bag"

type bagStore interface {
	Get(ctx context.Context, session bag.SessionID) (bag.Bag, error)
	Clear(ctx context.Context, session bag.SessionID) error
}

type paymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (*pkgstripe.Intent, error)
	AttachMetadata(ctx context.Context, intentID string, metadata pkgstripe.Metadata) error
}

type orderMaterializer interface {
	Materialize(ctx context.Context, input orders.MaterializeInput, lookup bag.ProductLookup) (*models.Order, error)
}

type profileResolver interface {
	Resolve(ctx context.Context, username string) (*models.UserProfile, error)
	SaveDefaults(ctx context.Context, profile *models.UserProfile, defaults profiles.Defaults) error
}

type orderCounter interface {
	IncOrderCreated(source enums.OrderSource)
}

// Shopper identifies who is checking out.
type Shopper struct {
	Session  bag.SessionID
	Username string
}

// IntentResult is returned when a payment intent is opened for the bag.
type IntentResult struct {
	ClientSecret   string       `json:"client_secret"`
	IntentID       string       `json:"intent_id"`
	PublishableKey string       `json:"publishable_key"`
	Summary        *bag.Summary `json:"summary"`
}

// CacheInput is the payload attached to an intent before the client confirms payment.
type CacheInput struct {
	ClientSecret string `json:"client_secret" validate:"required"`
	SaveInfo     bool   `json:"save_info"`
}

// SubmitInput is the checkout form.
type SubmitInput struct {
	orders.Shipping
	ClientSecret string `json:"client_secret" validate:"required"`
	SaveInfo     bool   `json:"save_info"`
}

// SubmitResult is the order produced by a checkout submission.
type SubmitResult struct {
	Order   orders.OrderDTO `json:"order"`
	Created bool            `json:"created"`
}

// Service runs the synchronous checkout path.
type Service interface {
	CreateIntent(ctx context.Context, shopper Shopper) (*IntentResult, error)
	CacheCheckoutData(ctx context.Context, shopper Shopper, input CacheInput) error
	Submit(ctx context.Context, shopper Shopper, input SubmitInput) (*SubmitResult, error)
}

// Options carries the checkout settings that come from configuration.
type Options struct {
	Currency       string
	PublishableKey string
}

type service struct {
	bags         bagStore
	aggregator   *bag.Aggregator
	products     bag.ProductLookup
	gateway      paymentGateway
	materializer orderMaterializer
	orders       orders.Repository
	profiles     profileResolver
	metrics      orderCounter
	logg         *logger.Logger
	opts         Options
}

// NewService builds the checkout service.
func NewService(
	bags bagStore,
	products bag.ProductLookup,
	gateway paymentGateway,
	materializer orderMaterializer,
	ordersRepo orders.Repository,
	profileSvc profileResolver,
	rule pricing.Rule,
	metrics orderCounter,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if bags == nil {
		return nil, fmt.Errorf("bag store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if materializer == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if profileSvc == nil {
		return nil, fmt.Errorf("profile service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(opts.Currency) == "" {
		return nil, fmt.Errorf("currency required")
	}
	return &service{
		bags:         bags,
		aggregator:   bag.NewAggregator(rule),
		products:     products,
		gateway:      gateway,
		materializer: materializer,
		orders:       ordersRepo,
		profiles:     profileSvc,
		metrics:      metrics,
		logg:         logg,
		opts:         opts,
	}, nil
}

// CreateIntent opens a payment intent for the bag's grand total, delivery included.
func (s *service) CreateIntent(ctx context.Context, shopper Shopper) (*IntentResult, error) {
	current, err := s.bags.Get(ctx, shopper.Session)
	if err != nil {
		return nil, err
	}
	if current.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, emptyBagMessage)
	}
	summary, err := s.aggregator.Project(ctx, current, s.products)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, pricing.ToMinorUnits(summary.GrandTotal), s.opts.Currency)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithPaymentIntent(ctx, intent.ID), "checkout.intent_created")
	return &IntentResult{
		ClientSecret:   intent.ClientSecret,
		IntentID:       intent.ID,
		PublishableKey: s.opts.PublishableKey,
		Summary:        summary,
	}, nil
}

// CacheCheckoutData attaches the bag snapshot and shopper details to the intent so the
// webhook can rebuild the order if the form submission never lands.
func (s *service) CacheCheckoutData(ctx context.Context, shopper Shopper, input CacheInput) error {
	intentID, err := pkgstripe.IntentIDFromClientSecret(input.ClientSecret)
	if err != nil {
		return err
	}
	current, err := s.bags.Get(ctx, shopper.Session)
	if err != nil {
		return err
	}
	encoded, err := bag.Encode(current)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bag")
	}
	return s.gateway.AttachMetadata(ctx, intentID, pkgstripe.Metadata{
		Bag:      encoded,
		SaveInfo: input.SaveInfo,
		Username: usernameOrAnonymous(shopper.Username),
	})
}

// Submit materializes the order for the current bag. When the webhook already created the
// order for this intent, that order is returned instead. The bag is cleared either way.
func (s *service) Submit(ctx context.Context, shopper Shopper, input SubmitInput) (*SubmitResult, error) {
	intentID, err := pkgstripe.IntentIDFromClientSecret(input.ClientSecret)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPaymentIntent(ctx, intentID)

	current, err := s.bags.Get(ctx, shopper.Session)
	if err != nil {
		return nil, err
	}
	if current.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, emptyBagMessage)
	}
	profile, err := s.profiles.Resolve(ctx, shopper.Username)
	if err != nil {
		return nil, err
	}

	input.Shipping = input.Shipping.Normalize()
	materializeInput := orders.MaterializeInput{
		Shipping:  input.Shipping,
		Bag:       current,
		StripePID: intentID,
		Source:    enums.OrderSourceCheckout,
	}
	if profile != nil {
		materializeInput.UserProfileID = &profile.ID
	}

	created := true
	order, err := s.materializer.Materialize(ctx, materializeInput, s.products)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.IncOrderCreated(enums.OrderSourceCheckout)
		}
	case orders.IsDuplicateIntent(err):
		created = false
		order, err = s.existingOrder(ctx, intentID, profile)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "order_number", order.OrderNumber)

	if input.SaveInfo && profile != nil {
		if err := s.profiles.SaveDefaults(ctx, profile, profiles.DefaultsFromShipping(input.Shipping)); err != nil {
			s.logg.Error(ctx, "checkout.save_defaults_failed", err)
		}
	}
	if err := s.bags.Clear(ctx, shopper.Session); err != nil {
		s.logg.Error(ctx, "checkout.clear_bag_failed", err)
	}

	if created {
		s.logg.Info(ctx, "checkout.order_created")
	} else {
		s.logg.Info(ctx, "checkout.order_already_reconciled")
	}
	return &SubmitResult{Order: orders.FromModel(order), Created: created}, nil
}

// existingOrder loads the order the webhook created and links the shopper's profile to it
// when the webhook could not.
func (s *service) existingOrder(ctx context.Context, intentID string, profile *models.UserProfile) (*models.Order, error) {
	order, err := s.orders.FindByStripePID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if profile != nil && order.UserProfileID == nil {
		if err := s.orders.AttachProfile(ctx, order.ID, profile.ID); err != nil {
			return nil, err
		}
		order.UserProfileID = &profile.ID
	}
	return order, nil
}

func usernameOrAnonymous(username string) string {
	if auth.IsAnonymous(username) {
		return auth.AnonymousUsername
	}
	return strings.TrimSpace(username)
}
