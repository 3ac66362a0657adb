package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	couponsvc "github.com/angelmondragon/storefront-checkout/internal/coupon"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
)

type fakeCart struct {
	view     *cartsvc.View
	err      error
	lastLine string
	lastQty  int
	set      selection.Set
}

func (f *fakeCart) View(context.Context, string) (*cartsvc.View, error) { return f.view, f.err }

func (f *fakeCart) Selected(context.Context, string) ([]cartsvc.Line, selection.Set, error) {
	return nil, f.set, f.err
}

func (f *fakeCart) UpdateQuantity(_ context.Context, _ string, lineID string, quantity int) (*cartsvc.View, error) {
	f.lastLine, f.lastQty = lineID, quantity
	return f.view, f.err
}

func (f *fakeCart) RemoveLine(_ context.Context, _ string, lineID string) (*cartsvc.View, error) {
	f.lastLine = lineID
	return f.view, f.err
}

func (f *fakeCart) Toggle(_ context.Context, _ string, lineID string) (selection.Set, error) {
	f.lastLine = lineID
	return f.set, f.err
}

func (f *fakeCart) SelectAll(context.Context, string) (selection.Set, error) { return f.set, f.err }

func (f *fakeCart) ClearSelection(context.Context, string) (selection.Set, error) { return nil, f.err }

type fakeCoupons struct {
	application  *couponsvc.Application
	active       *couponsvc.Coupon
	err          error
	lastCode     string
	lastSubtotal decimal.Decimal
	removed      bool
}

func (f *fakeCoupons) Apply(_ context.Context, _ string, code string, subtotal decimal.Decimal) (*couponsvc.Application, error) {
	f.lastCode, f.lastSubtotal = code, subtotal
	return f.application, f.err
}

func (f *fakeCoupons) Remove(context.Context, string) error {
	f.removed = true
	return f.err
}

func (f *fakeCoupons) Active(context.Context, string) (*couponsvc.Coupon, error) { return f.active, f.err }

func (f *fakeCoupons) Revalidate(context.Context, string, decimal.Decimal) (*couponsvc.Coupon, error) {
	return f.active, f.err
}

type fakeCheckout struct {
	result     *checkoutsvc.Result
	err        error
	lastInput  checkoutsvc.SubmitInput
	lastReturn checkoutsvc.ReturnParams
	lastOrder  string
}

func (f *fakeCheckout) Submit(_ context.Context, _ string, input checkoutsvc.SubmitInput) (*checkoutsvc.Result, error) {
	f.lastInput = input
	return f.result, f.err
}

func (f *fakeCheckout) Resume(_ context.Context, _ string, params checkoutsvc.ReturnParams) (*checkoutsvc.Result, error) {
	f.lastReturn = params
	return f.result, f.err
}

func (f *fakeCheckout) Confirmation(_ context.Context, _ string, orderID string) (*checkoutsvc.Result, error) {
	f.lastOrder = orderID
	return f.result, f.err
}

func (f *fakeCheckout) Close(context.Context) error { return nil }

func asCustomer(r *http.Request, customerID string) *http.Request {
	return r.WithContext(middleware.WithCustomerID(r.Context(), customerID))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
