package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/bag"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// BagService is the session bag surface the controllers need.
type BagService interface {
	Get(ctx context.Context, session bag.SessionID) (bag.Bag, error)
	AddItem(ctx context.Context, session bag.SessionID, productID uuid.UUID, quantity int, size *string) (bag.Bag, error)
	SetItemQuantity(ctx context.Context, session bag.SessionID, productID uuid.UUID, quantity int, size *string) (bag.Bag, error)
	RemoveItem(ctx context.Context, session bag.SessionID, productID uuid.UUID, size *string) (bag.Bag, error)
}

// BagProjector renders a bag summary.
type BagProjector interface {
	Project(ctx context.Context, b bag.Bag, lookup bag.ProductLookup) (*bag.Summary, error)
}

type addBagItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
	Size      *string   `json:"size,omitempty" validate:"omitempty,max=10"`
}

type setBagItemRequest struct {
	Quantity int     `json:"quantity" validate:"min=0,max=99"`
	Size     *string `json:"size,omitempty" validate:"omitempty,max=10"`
}

func GetBag(store BagService, projector BagProjector, lookup bag.ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag service unavailable"))
			return
		}
		current, err := store.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
		writeBagSummary(w, r, projector, lookup, logg, current, err)
	}
}

func AddBagItem(store BagService, projector BagProjector, lookup bag.ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag service unavailable"))
			return
		}
		var payload addBagItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := bag.ResolveVariant(r.Context(), lookup, payload.ProductID, payload.Size); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		current, err := store.AddItem(r.Context(), middleware.SessionIDFromContext(r.Context()), payload.ProductID, payload.Quantity, payload.Size)
		writeBagSummary(w, r, projector, lookup, logg, current, err)
	}
}

func SetBagItemQuantity(store BagService, projector BagProjector, lookup bag.ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setBagItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Quantity > 0 {
			if _, err := bag.ResolveVariant(r.Context(), lookup, productID, payload.Size); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		current, err := store.SetItemQuantity(r.Context(), middleware.SessionIDFromContext(r.Context()), productID, payload.Quantity, payload.Size)
		writeBagSummary(w, r, projector, lookup, logg, current, err)
	}
}

func RemoveBagItem(store BagService, projector BagProjector, lookup bag.ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size := validators.OptionalQuery(r, "size", 10)
		current, err := store.RemoveItem(r.Context(), middleware.SessionIDFromContext(r.Context()), productID, size)
		writeBagSummary(w, r, projector, lookup, logg, current, err)
	}
}

func writeBagSummary(w http.ResponseWriter, r *http.Request, projector BagProjector, lookup bag.ProductLookup, logg *logger.Logger, current bag.Bag, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	summary, err := projector.Project(r.Context(), current, lookup)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, summary)
}
