package checkout

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/coupon"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customer = "42"

type harness struct {
	svc      Service
	mem      *kv.Memory
	sessions *selection.Store
	lines    *fakeLines
	coupons  *fakeCoupons
	gateway  *fakeGateway
	outcomes *fakeOutcomes
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:      kv.NewMemory(),
		lines:    &fakeLines{lines: []cart.Line{line("11", "501", "T-shirt", 2, 100000), line("12", "502", "Cap", 1, 100000)}},
		coupons:  &fakeCoupons{},
		gateway:  newFakeGateway(),
		outcomes: &fakeOutcomes{},
	}
	h.sessions = selection.NewStore(h.mem, time.Hour)
	svc, err := NewService(h.lines, h.sessions, h.coupons, h.gateway, h.mem, logger.Nop(), Options{
		Checkout: config.CheckoutConfig{
			ConfirmationRedirect: "/orders",
			RedirectAfter:        5 * time.Second,
			ReturnURL:            "/api/v1/checkout/return",
			CleanupTimeout:       time.Second,
		},
		TTL:     time.Hour,
		Metrics: h.outcomes,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Close(ctx))
}

func validInput(method string) SubmitInput {
	return SubmitInput{
		ShippingInfo: ShippingInfo{
			FullName:    "Nguyen Van An",
			PhoneNumber: "0912345678",
			Address:     "12 Ly Thuong Kiet",
			Ward:        "Hang Bai",
			District:    "Hoan Kiem",
			Province:    "Ha Noi",
		},
		PaymentMethod: method,
	}
}

func TestSubmitReportsEveryInvalidField(t *testing.T) {
	h := newHarness(t)
	input := validInput(PaymentCOD)
	input.ShippingInfo.FullName = ""
	input.ShippingInfo.PhoneNumber = "12345"

	_, err := h.svc.Submit(context.Background(), customer, input)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "full_name")
	assert.Contains(t, details, "phone_number")
	assert.Contains(t, typed.Message(), "Full name is required.")
	assert.Contains(t, typed.Message(), "Phone number must be a valid Vietnamese mobile number.")
	assert.Equal(t, 0, h.gateway.checkoutCalls())
	assert.Equal(t, "invalid", h.outcomes.last().outcome)
}

func TestSubmitRejectsUnknownPaymentMethod(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), customer, validInput("CARD"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "payment_method")
}

func TestSubmitCODConfirmsAndCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.sessions.Load(ctx, customer, []string{"11", "12"})
	require.NoError(t, err)

	input := validInput("cod")
	input.SaveAddress = true
	result, err := h.svc.Submit(ctx, customer, input)
	require.NoError(t, err)
	h.drain(t)

	assert.True(t, result.Success)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, "1001", result.OrderID)
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, "/orders", result.RedirectTo)
	assert.Equal(t, 5, result.RedirectAfterSeconds)
	assert.Empty(t, result.PaymentURL)

	require.Len(t, h.gateway.checkouts, 1)
	sent := h.gateway.checkouts[0]
	assert.Equal(t, backend.ID(customer), sent.CustomerID)
	assert.Equal(t, PaymentCOD, sent.PaymentMethod)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, backend.ID("501"), sent.Items[0].ProductID)
	assert.Equal(t, 2, sent.Items[0].Quantity)

	require.Len(t, h.gateway.cleared, 1)
	assert.Equal(t, []backend.ID{"11", "12"}, h.gateway.cleared[0].CartItemIDs)
	require.Len(t, h.gateway.addresses, 1)
	assert.Equal(t, backend.ID(customer), h.gateway.addresses[0].CustomerID)
	require.Len(t, h.gateway.notifications, 1)
	assert.Contains(t, h.gateway.notifications[0].Message, "1001")
	assert.Equal(t, 1, h.coupons.removals())

	_, err = h.mem.Get(ctx, kv.CheckoutKey(customer, "selection"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.Equal(t, recordedOutcome{method: PaymentCOD, outcome: "confirmed"}, h.outcomes.last())
}

func TestSubmitCleanupFailureDoesNotChangeResult(t *testing.T) {
	h := newHarness(t)
	h.gateway.clearErr = pkgerrors.FromHTTPStatus(http.StatusInternalServerError, "", nil)

	result, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.NoError(t, err)
	h.drain(t)

	assert.True(t, result.Success)
	assert.Len(t, h.gateway.notifications, 1)
	assert.Empty(t, h.gateway.addresses)
}

func TestSubmitStockShortfallListsEveryProduct(t *testing.T) {
	h := newHarness(t)
	h.gateway.stock = &backend.StockCheckResult{
		Valid: false,
		InvalidItems: []backend.StockIssue{
			{CartItemID: "11", ProductName: "T-shirt", RequestedQuantity: 3, AvailableQuantity: 1},
			{CartItemID: "12", ProductName: "Cap", RequestedQuantity: 2, AvailableQuantity: 0},
		},
	}

	_, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStockShortfall, typed.Code())
	assert.Contains(t, typed.Message(), "T-shirt: requested 3, only 1 in stock")
	assert.Contains(t, typed.Message(), "Cap: requested 2, only 0 in stock")
	details := typed.Details().(map[string]any)
	assert.Equal(t, true, details["reload"])
	assert.Equal(t, 0, h.gateway.checkoutCalls())
}

func TestSubmitInvalidCouponBlocksOrder(t *testing.T) {
	h := newHarness(t)
	h.coupons.err = pkgerrors.New(pkgerrors.CodeCouponInvalid, "expired")

	_, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeCouponInvalid))
	assert.Equal(t, 0, h.gateway.checkoutCalls())
	assert.Equal(t, "coupon_invalid", h.outcomes.last().outcome)
}

func TestSubmitSendsActiveCouponAndUsesLocalTotalsWhenBackendOmitsThem(t *testing.T) {
	h := newHarness(t)
	h.coupons.active = &coupon.Coupon{Code: "SALE10", DiscountType: "PERCENTAGE", DiscountValue: decimal.NewFromInt(10)}
	h.gateway.placed = &backend.CheckoutResponse{OrderID: "77"}

	result, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.NoError(t, err)
	h.drain(t)

	assert.Equal(t, "SALE10", h.gateway.checkouts[0].CouponCode)
	assert.True(t, result.OriginalTotal.Equal(decimal.NewFromInt(300000)))
	assert.True(t, result.DiscountAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(270000)))
}

func TestSubmitBackendErrorLeavesNothingBehind(t *testing.T) {
	h := newHarness(t)
	h.gateway.checkoutErr = pkgerrors.FromHTTPStatus(http.StatusConflict, "duplicate order", nil)

	_, err := h.svc.Submit(context.Background(), customer, validInput(PaymentVNPay))
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, pkgerrors.UserMessageForStatus(http.StatusConflict), typed.Message())
	assert.Equal(t, 0, h.mem.Len())
	assert.Equal(t, "failed", h.outcomes.last().outcome)
}

func TestSubmitVNPayPersistsMarkerAndSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.svc.Submit(ctx, customer, validInput(PaymentVNPay))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StateAwaitingExternalPayment, result.State)
	assert.Equal(t, "https://pay.example.test/vnpay?order=1001", result.PaymentURL)

	require.Len(t, h.gateway.payments, 1)
	assert.Equal(t, backend.ID("1001"), h.gateway.payments[0].OrderID)
	assert.True(t, h.gateway.payments[0].Amount.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, "/api/v1/checkout/return", h.gateway.payments[0].ReturnURL)

	var marker PendingPayment
	found, err := kv.GetJSON(ctx, h.mem, kv.CheckoutKey(customer, "payment_pending"), &marker)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1001", marker.OrderID)
	assert.True(t, marker.Amount.Equal(decimal.NewFromInt(300000)))

	snapshot, err := h.sessions.LoadSnapshot(ctx, customer)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "T-shirt", snapshot[0].ProductName)
	assert.Empty(t, h.gateway.cleared)
}

func TestSubmitFallsBackToSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.lines.lines = nil
	require.NoError(t, h.sessions.SaveSnapshot(ctx, customer, []selection.SnapshotLine{
		{CartItemID: "11", ProductID: "501", ProductName: "T-shirt", Quantity: 1, Price: decimal.NewFromInt(50000)},
	}))

	_, err := h.svc.Submit(ctx, customer, validInput(PaymentCOD))
	require.NoError(t, err)
	h.drain(t)

	require.Len(t, h.gateway.checkouts, 1)
	require.Len(t, h.gateway.checkouts[0].Items, 1)
	assert.Equal(t, backend.ID("501"), h.gateway.checkouts[0].Items[0].ProductID)
}

func TestSubmitWithNothingSelected(t *testing.T) {
	h := newHarness(t)
	h.lines.lines = nil

	_, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestResumeFromColdState(t *testing.T) {
	h := newHarness(t)
	h.gateway.order = &backend.Order{
		ID:            "X",
		OriginalTotal: decimal.NewFromInt(200000),
		FinalTotal:    decimal.NewFromInt(200000),
	}

	result, err := h.svc.Resume(context.Background(), customer, ReturnParams{Success: true, OrderID: "X"})
	require.NoError(t, err)
	h.drain(t)

	assert.True(t, result.Success)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, "X", result.OrderID)
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 5, result.RedirectAfterSeconds)
	require.Len(t, h.gateway.notifications, 1)
}

func TestResumeFallsBackToStoredTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gateway.orderErr = pkgerrors.FromTransport(context.DeadlineExceeded, "orders.get")

	_, err := h.svc.Submit(ctx, customer, validInput(PaymentVNPay))
	require.NoError(t, err)
	require.NoError(t, kv.SetJSON(ctx, h.mem, kv.CheckoutKey(customer, "payment_pending"), PendingPayment{
		OrderID: "1001",
		Amount:  decimal.NewFromInt(270000),
	}, time.Hour))

	result, err := h.svc.Resume(ctx, customer, ReturnParams{Success: true, OrderID: "1001"})
	require.NoError(t, err)
	h.drain(t)

	assert.True(t, result.OriginalTotal.Equal(decimal.NewFromInt(300000)))
	assert.True(t, result.DiscountAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(270000)))

	_, err = h.mem.Get(ctx, kv.CheckoutKey(customer, "payment_pending"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
	require.Len(t, h.gateway.cleared, 1)
	assert.Equal(t, []backend.ID{"11", "12"}, h.gateway.cleared[0].CartItemIDs)
}

func TestResumeFailedPaymentKeepsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, customer, validInput(PaymentVNPay))
	require.NoError(t, err)

	result, err := h.svc.Resume(ctx, customer, ReturnParams{Success: false, OrderID: "1001"})
	require.NoError(t, err)
	h.drain(t)

	assert.False(t, result.Success)
	assert.Equal(t, StateError, result.State)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, h.gateway.cleared)

	_, err = h.mem.Get(ctx, kv.CheckoutKey(customer, "payment_pending"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
	snapshot, err := h.sessions.LoadSnapshot(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "payment_failed", h.outcomes.last().outcome)
}

func TestResumeRequiresOrderID(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Resume(context.Background(), customer, ReturnParams{Success: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestConfirmationRendersFromOrderID(t *testing.T) {
	h := newHarness(t)
	h.gateway.order = &backend.Order{ID: "55", FinalTotal: decimal.NewFromInt(1250000), OriginalTotal: decimal.NewFromInt(1250000)}

	result, err := h.svc.Confirmation(context.Background(), customer, "55")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, "55", result.OrderID)
	assert.Equal(t, "1.250.000 ₫", result.FinalTotalDisplay)
	assert.Equal(t, "/orders", result.RedirectTo)

	h.gateway.orderErr = pkgerrors.FromHTTPStatus(http.StatusNotFound, "", nil)
	_, err = h.svc.Confirmation(context.Background(), customer, "56")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestOverlappingSubmitIsRefusedBeforeOrdering(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.gateway.onCheckout = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}

	var (
		wg       sync.WaitGroup
		first    *Result
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	}()

	<-entered
	_, err := h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "in_progress", typed.Details().(map[string]any)["reason"])

	_, err = h.svc.Resume(context.Background(), customer, ReturnParams{Success: true, OrderID: "1001"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "resume during a submit should be refused, got %v", err)

	close(release)
	wg.Wait()
	h.drain(t)

	require.NoError(t, firstErr)
	require.NotNil(t, first)
	assert.True(t, first.Success)
	assert.Equal(t, 1, h.gateway.checkoutCalls())
	h.gateway.mu.Lock()
	notified := len(h.gateway.notifications)
	h.gateway.mu.Unlock()
	assert.Equal(t, 1, notified)

	h.gateway.onCheckout = nil
	_, err = h.svc.Submit(context.Background(), customer, validInput(PaymentCOD))
	assert.False(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "guard should be released after the first attempt, got %v", err)
	h.drain(t)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, Options{})
	require.Error(t, err)
}
