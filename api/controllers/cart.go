package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type selectionResponse struct {
	SelectedIDs selection.Set `json:"selected_ids"`
}

// CartView returns the reconciled cart with the current selection.
func CartView(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.View(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartUpdateQuantity changes one line's quantity.
func CartUpdateQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateQuantity(r.Context(), customerID, chi.URLParam(r, "lineId"), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartRemoveLine deletes a line and drops it from the selection.
func CartRemoveLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveLine(r.Context(), customerID, chi.URLParam(r, "lineId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SelectionToggle flips a single line in or out of the checkout selection.
func SelectionToggle(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return selectionHandler(svc, logg, func(r *http.Request, customerID string) (selection.Set, error) {
		return svc.Toggle(r.Context(), customerID, chi.URLParam(r, "lineId"))
	})
}

func SelectionAll(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return selectionHandler(svc, logg, func(r *http.Request, customerID string) (selection.Set, error) {
		return svc.SelectAll(r.Context(), customerID)
	})
}

func SelectionClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return selectionHandler(svc, logg, func(r *http.Request, customerID string) (selection.Set, error) {
		return svc.ClearSelection(r.Context(), customerID)
	})
}

func selectionHandler(svc cartsvc.Service, logg *logger.Logger, op func(*http.Request, string) (selection.Set, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := op(r, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if set == nil {
			set = selection.Set{}
		}
		responses.WriteSuccess(w, selectionResponse{SelectedIDs: set})
	}
}
