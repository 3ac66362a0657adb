package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func customerIDFromContext(r *http.Request) (string, error) {
	if r == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	customerID := middleware.CustomerIDFromContext(r.Context())
	if customerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	return customerID, nil
}
