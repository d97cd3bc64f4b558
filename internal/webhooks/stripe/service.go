package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type intentReconciler interface {
	Reconcile(ctx context.Context, intent *PaymentIntent) (*Result, error)
}

type ServiceParams struct {
	Reconciler intentReconciler
	Logger     *logger.Logger
}

// Service dispatches verified Stripe events by type.
type Service struct {
	reconciler intentReconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent reconciles succeeded payment intents. Failed payments and unknown event
// types are acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := PaymentIntentFromEvent(event)
		if err != nil {
			return err
		}
		_, err = s.reconciler.Reconcile(ctx, intent)
		return err
	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := PaymentIntentFromEvent(event)
		if err == nil {
			ctx = s.logg.WithPaymentIntent(ctx, intent.ID)
		}
		s.logg.Warn(ctx, "stripe.payment_failed")
		return nil
	default:
		s.logg.Info(ctx, "stripe.event_unhandled")
		return nil
	}
}
