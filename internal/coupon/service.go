package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"github.com/angelmondragon/storefront-checkout/pkg/pricing"
	"github.com/shopspring/decimal"
)

const (
	couponKey = "coupon"

	defaultInvalidMessage = "This coupon code is not valid."
)

// Validator is the backend coupon check.
type Validator interface {
	ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*backend.CouponValidation, error)
}

// Service manages the single active coupon per customer.
type Service interface {
	Apply(ctx context.Context, customerID, code string, subtotal decimal.Decimal) (*Application, error)
	Remove(ctx context.Context, customerID string) error
	Active(ctx context.Context, customerID string) (*Coupon, error)
	Revalidate(ctx context.Context, customerID string, subtotal decimal.Decimal) (*Coupon, error)
}

type service struct {
	validator Validator
	store     kv.Store
	ttl       time.Duration
}

func NewService(validator Validator, store kv.Store, ttl time.Duration) (Service, error) {
	if validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{validator: validator, store: store, ttl: ttl}, nil
}

// Apply validates code against subtotal with one backend call. A valid coupon replaces the
// active one; an invalid one leaves it alone and carries the backend's message as-is.
func (s *service) Apply(ctx context.Context, customerID, code string, subtotal decimal.Decimal) (*Application, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required").
			WithDetails(map[string]any{"code": "is required"})
	}

	coupon, message, err := s.check(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return &Application{
			Valid:      false,
			Message:    message,
			Subtotal:   subtotal,
			Discount:   decimal.Zero,
			FinalTotal: subtotal,
		}, nil
	}

	if err := kv.SetJSON(ctx, s.store, kv.CheckoutKey(customerID, couponKey), coupon, s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}

	discount := coupon.Discount(subtotal)
	return &Application{
		Valid:           true,
		Message:         message,
		Coupon:          coupon,
		Subtotal:        subtotal,
		Discount:        discount,
		FinalTotal:      pricing.FinalTotal(subtotal, discount),
		DiscountDisplay: pricing.FormatVND(discount),
	}, nil
}

// Remove forgets the active coupon. It never calls the backend.
func (s *service) Remove(ctx context.Context, customerID string) error {
	if err := s.store.Del(ctx, kv.CheckoutKey(customerID, couponKey)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	return nil
}

func (s *service) Active(ctx context.Context, customerID string) (*Coupon, error) {
	var coupon Coupon
	found, err := kv.GetJSON(ctx, s.store, kv.CheckoutKey(customerID, couponKey), &coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	if !found || coupon.Code == "" {
		return nil, nil
	}
	return &coupon, nil
}

// Revalidate re-checks the active coupon against the current subtotal. No active coupon returns
// nil. A coupon that no longer applies is a COUPON_INVALID error; the stored coupon is kept.
func (s *service) Revalidate(ctx context.Context, customerID string, subtotal decimal.Decimal) (*Coupon, error) {
	active, err := s.Active(ctx, customerID)
	if err != nil || active == nil {
		return nil, err
	}

	fresh, message, err := s.check(ctx, active.Code, subtotal)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, message).
			WithDetails(map[string]any{"code": active.Code, "reload": true})
	}
	return fresh, nil
}

// check returns the coupon when valid, or a nil coupon and the reason when not. Only transport
// and server failures come back as errors.
func (s *service) check(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, string, error) {
	result, err := s.validator.ValidateCoupon(ctx, code, subtotal)
	if err != nil {
		if rejected(err) {
			msg := pkgerrors.UpstreamMessage(err)
			if msg == "" {
				msg = defaultInvalidMessage
			}
			return nil, msg, nil
		}
		return nil, "", err
	}

	if !result.Valid || result.Coupon == nil {
		msg := strings.TrimSpace(result.Message)
		if msg == "" {
			msg = defaultInvalidMessage
		}
		return nil, msg, nil
	}

	coupon := fromBackend(result.Coupon)
	if coupon.Code == "" {
		coupon.Code = code
	}
	if !coupon.Eligible(subtotal) {
		return nil, fmt.Sprintf("Orders must reach %s to use this coupon.", pricing.FormatVND(*coupon.OrderAmountLimit)), nil
	}
	return coupon, strings.TrimSpace(result.Message), nil
}

// rejected reports whether the backend refused the coupon itself rather than failing.
func rejected(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict, pkgerrors.CodeUnprocessable:
		return true
	}
	return false
}
