package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// SessionCookie carries the same token as the Authorization header. Browser redirects from the
// payment gateway only bring the cookie back.
const SessionCookie = "sf_token"

// Auth reads the shopper's bearer token, seeds the context with the customer id and forwards
// the same token on every backend call made for this request.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil {
					raw = strings.TrimSpace(cookie.Value)
				}
			}
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseCustomerToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Your session has expired. Please sign in again."))
				return
			}
			customerID := claims.Customer()

			ctx := WithCustomerID(r.Context(), customerID)
			ctx = backend.WithToken(ctx, token)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, customerID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
