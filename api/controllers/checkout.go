package controllers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxOrderIDLength = 64

// Checkout submits the selected lines. Validation runs inside the service so every field
// problem is reported in one response.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.SubmitInput
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), customerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.State == checkoutsvc.StateAwaitingExternalPayment {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// CheckoutReturn is where the payment gateway sends the browser back. It settles the order and
// redirects to a URL without the gateway's query so a refresh cannot settle it twice.
func CheckoutReturn(svc checkoutsvc.Service, cfg config.CheckoutConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		success, _ := strconv.ParseBool(strings.TrimSpace(query.Get("success")))
		orderID := validators.SanitizeString(query.Get("orderId"), maxOrderIDLength)

		result, err := svc.Resume(r.Context(), customerID, checkoutsvc.ReturnParams{Success: success, OrderID: orderID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target := cfg.PaymentFailedURL
		if result.Success {
			target = strings.TrimRight(cfg.ConfirmationURL, "/") + "/" + url.PathEscape(result.OrderID)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// CheckoutConfirmation renders a placed order from its id alone.
func CheckoutConfirmation(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirmation(r.Context(), customerID, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
