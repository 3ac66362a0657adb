package checkout

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/coupon"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/shopspring/decimal"
)

type fakeLines struct {
	lines []cart.Line
	err   error
}

func (f *fakeLines) Selected(context.Context, string) ([]cart.Line, selection.Set, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.lines, selection.NewSet(cart.LineIDs(f.lines)...), nil
}

type fakeCoupons struct {
	mu      sync.Mutex
	active  *coupon.Coupon
	err     error
	removed int
}

func (f *fakeCoupons) Revalidate(context.Context, string, decimal.Decimal) (*coupon.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.err
}

func (f *fakeCoupons) Remove(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	f.active = nil
	return nil
}

func (f *fakeCoupons) removals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

type fakeGateway struct {
	mu sync.Mutex

	stock       *backend.StockCheckResult
	stockErr    error
	placed      *backend.CheckoutResponse
	checkoutErr error
	onCheckout  func(call int)
	payment     *backend.PaymentResponse
	paymentErr  error
	order       *backend.Order
	orderErr    error
	clearErr    error

	checkouts     []backend.CheckoutRequest
	payments      []backend.PaymentRequest
	cleared       []backend.ClearSelectedRequest
	addresses     []backend.Address
	notifications []backend.Notification
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		stock: &backend.StockCheckResult{Valid: true},
		placed: &backend.CheckoutResponse{
			OrderID:        "1001",
			Message:        "Order created",
			OriginalTotal:  decimal.NewFromInt(300000),
			DiscountAmount: decimal.Zero,
			FinalTotal:     decimal.NewFromInt(300000),
		},
		payment: &backend.PaymentResponse{PaymentURL: "https://pay.example.test/vnpay?order=1001"},
	}
}

func (f *fakeGateway) ValidateSelected(context.Context, backend.StockCheckRequest) (*backend.StockCheckResult, error) {
	return f.stock, f.stockErr
}

func (f *fakeGateway) Checkout(_ context.Context, req backend.CheckoutRequest) (*backend.CheckoutResponse, error) {
	f.mu.Lock()
	f.checkouts = append(f.checkouts, req)
	call := len(f.checkouts)
	hook := f.onCheckout
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.placed, nil
}

func (f *fakeGateway) CreatePayment(_ context.Context, req backend.PaymentRequest) (*backend.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, req)
	return f.payment, f.paymentErr
}

func (f *fakeGateway) Order(context.Context, backend.ID) (*backend.Order, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	if f.order == nil {
		return &backend.Order{}, nil
	}
	return f.order, nil
}

func (f *fakeGateway) ClearSelected(_ context.Context, req backend.ClearSelectedRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, req)
	return f.clearErr
}

func (f *fakeGateway) SaveAddress(_ context.Context, address backend.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, address)
	return nil
}

func (f *fakeGateway) Notify(_ context.Context, n backend.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeGateway) checkoutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkouts)
}

type recordedOutcome struct {
	method  string
	outcome string
}

type fakeOutcomes struct {
	mu   sync.Mutex
	seen []recordedOutcome
}

func (f *fakeOutcomes) IncOutcome(method, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedOutcome{method: method, outcome: outcome})
}

func (f *fakeOutcomes) last() recordedOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return recordedOutcome{}
	}
	return f.seen[len(f.seen)-1]
}

func line(id, productID, name string, qty int, price int64) cart.Line {
	return cart.Line{
		ID:       id,
		Quantity: qty,
		Product: cart.Product{
			ID:          productID,
			ProductName: name,
			BuyingPrice: decimal.NewFromInt(price),
			Quantity:    100,
		},
	}
}
