// Package checkout assembles the selected cart lines into an order, submits it, and brings the
// shopper back from the payment gateway.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
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
)

// Gateway is the slice of the backend that places and reads orders.
type Gateway interface {
	ValidateSelected(ctx context.Context, req backend.StockCheckRequest) (*backend.StockCheckResult, error)
	Checkout(ctx context.Context, req backend.CheckoutRequest) (*backend.CheckoutResponse, error)
	CreatePayment(ctx context.Context, req backend.PaymentRequest) (*backend.PaymentResponse, error)
	Order(ctx context.Context, orderID backend.ID) (*backend.Order, error)
	ClearSelected(ctx context.Context, req backend.ClearSelectedRequest) error
	SaveAddress(ctx context.Context, address backend.Address) error
	Notify(ctx context.Context, n backend.Notification) error
}

type lineSource interface {
	Selected(ctx context.Context, customerID string) ([]cart.Line, selection.Set, error)
}

type snapshotStore interface {
	SaveSnapshot(ctx context.Context, customerID string, lines []selection.SnapshotLine) error
	LoadSnapshot(ctx context.Context, customerID string) ([]selection.SnapshotLine, error)
	Reset(ctx context.Context, customerID string) error
}

type couponService interface {
	Revalidate(ctx context.Context, customerID string, subtotal decimal.Decimal) (*coupon.Coupon, error)
	Remove(ctx context.Context, customerID string) error
}

type outcomeRecorder interface {
	IncOutcome(method, outcome string)
}

// Service runs the checkout protocol.
type Service interface {
	Submit(ctx context.Context, customerID string, input SubmitInput) (*Result, error)
	Resume(ctx context.Context, customerID string, params ReturnParams) (*Result, error)
	Confirmation(ctx context.Context, customerID, orderID string) (*Result, error)
	// Close waits for in-flight clean-up work.
	Close(ctx context.Context) error
}

// ReturnParams are the query parameters the payment gateway sends the shopper back with.
type ReturnParams struct {
	Success bool
	OrderID string
}

// Options tunes a Service; zero values fall back to defaults.
type Options struct {
	Checkout config.CheckoutConfig
	TTL      time.Duration
	Metrics  outcomeRecorder
	Now      func() time.Time
}

type service struct {
	lines    lineSource
	sessions snapshotStore
	coupons  couponService
	gateway  Gateway
	pending  pendingStore
	logg     *logger.Logger
	cfg      config.CheckoutConfig
	metrics  outcomeRecorder
	now      func() time.Time
	guard    *attemptGuard
	cleanups sync.WaitGroup
}

// NewService builds the checkout service.
func NewService(
	lines lineSource,
	sessions snapshotStore,
	coupons couponService,
	gateway Gateway,
	store kv.Store,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if lines == nil {
		return nil, fmt.Errorf("cart line source required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("checkout gateway required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Checkout.CleanupTimeout <= 0 {
		opts.Checkout.CleanupTimeout = 15 * time.Second
	}
	return &service{
		lines:    lines,
		sessions: sessions,
		coupons:  coupons,
		gateway:  gateway,
		pending:  pendingStore{kv: store, ttl: opts.TTL},
		logg:     logg,
		cfg:      opts.Checkout,
		metrics:  opts.Metrics,
		now:      opts.Now,
		guard:    newAttemptGuard(),
	}, nil
}

// Submit validates the form, re-checks stock and coupon, and places the order. Pay-on-delivery
// orders come back Confirmed; gateway orders come back AwaitingExternalPayment with the URL to
// send the shopper to.
func (s *service) Submit(ctx context.Context, customerID string, input SubmitInput) (*Result, error) {
	input = input.Normalize()
	if !s.guard.acquire(customerID) {
		s.recordOutcome(input.PaymentMethod, "in_progress")
		return nil, errInProgress()
	}
	defer s.guard.release(customerID)
	m := newMachine(StateIdle)

	result, err := s.submit(ctx, m, customerID, input)
	if err != nil {
		m.fail()
		s.recordOutcome(input.PaymentMethod, outcomeForError(err))
		return nil, err
	}
	s.recordOutcome(input.PaymentMethod, string(result.State))
	return result, nil
}

func (s *service) submit(ctx context.Context, m *machine, customerID string, input SubmitInput) (*Result, error) {
	if err := m.advance(StateValidating); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, customerID, lines); err != nil {
		return nil, err
	}

	subtotal := snapshotSubtotal(lines)
	active, err := s.coupons.Revalidate(ctx, customerID, subtotal)
	if err != nil {
		return nil, err
	}
	local := newTotals(subtotal, active.Discount(subtotal))

	if err := m.advance(StateSubmittingOrder); err != nil {
		return nil, err
	}

	req := backend.CheckoutRequest{
		CustomerID:    backend.ID(customerID),
		ShippingInfo:  input.ShippingInfo.toBackend(""),
		PaymentMethod: input.PaymentMethod,
		Items:         checkoutItems(lines),
	}
	if active != nil {
		req.CouponCode = active.Code
	}
	placed, err := s.gateway.Checkout(ctx, req)
	if err != nil {
		return nil, err
	}
	orderID := placed.OrderID.String()
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "The shop did not return an order number. Please check your orders before trying again.")
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	placedTotals := totals{original: placed.OriginalTotal, discount: placed.DiscountAmount, final: placed.FinalTotal}
	if placedTotals.isZero() {
		placedTotals = local
	}
	result := &Result{OrderID: orderID, Message: strings.TrimSpace(placed.Message)}
	result.setTotals(placedTotals)

	var address *backend.Address
	if input.SaveAddress {
		saved := input.ShippingInfo.toBackend(customerID)
		address = &saved
	}

	switch input.PaymentMethod {
	case PaymentVNPay:
		return s.handOffToGateway(ctx, m, customerID, result, lines, req.CouponCode, address)
	default:
		if err := m.advance(StateConfirmed); err != nil {
			return nil, err
		}
		result.Success = true
		result.State = m.current()
		if result.Message == "" {
			result.Message = "Your order has been placed."
		}
		s.withRedirect(result)
		s.cleanup(ctx, customerID, orderID, lines, address)
		return result, nil
	}
}

func (s *service) handOffToGateway(
	ctx context.Context,
	m *machine,
	customerID string,
	result *Result,
	lines []selection.SnapshotLine,
	couponCode string,
	address *backend.Address,
) (*Result, error) {
	payment, err := s.gateway.CreatePayment(ctx, backend.PaymentRequest{
		OrderID:   backend.ID(result.OrderID),
		Amount:    result.FinalTotal,
		ReturnURL: s.cfg.ReturnURL,
	})
	if err != nil {
		return nil, withOrderID(err, result.OrderID)
	}
	paymentURL := strings.TrimSpace(payment.PaymentURL)
	if paymentURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "The payment gateway is unavailable right now. Please try again.").
			WithDetails(map[string]any{"order_id": result.OrderID})
	}

	marker := PendingPayment{
		OrderID:     result.OrderID,
		Amount:      result.FinalTotal,
		CreatedAt:   s.now().UTC(),
		CouponCode:  couponCode,
		SaveAddress: address,
	}
	if err := s.pending.save(ctx, customerID, marker); err != nil {
		s.logg.Error(ctx, "failed to persist payment pending marker", err)
	}
	if err := s.sessions.SaveSnapshot(ctx, customerID, lines); err != nil {
		s.logg.Error(ctx, "failed to persist checkout snapshot", err)
	}

	if err := m.advance(StateAwaitingExternalPayment); err != nil {
		return nil, err
	}
	result.State = m.current()
	result.PaymentURL = paymentURL
	if result.Message == "" {
		result.Message = "Redirecting to the payment gateway."
	}
	return result, nil
}

// Resume handles the browser coming back from the payment gateway. It needs nothing from the
// request that sent the shopper away: the order is re-fetched and the stored marker and
// snapshot are only a fallback.
func (s *service) Resume(ctx context.Context, customerID string, params ReturnParams) (*Result, error) {
	orderID := strings.TrimSpace(params.OrderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required").
			WithDetails(map[string]string{"orderId": "is required"})
	}
	ctx = s.logg.WithOrderID(ctx, orderID)
	if !s.guard.acquire(customerID) {
		s.recordOutcome(PaymentVNPay, "in_progress")
		return nil, errInProgress()
	}
	defer s.guard.release(customerID)
	m := newMachine(StateAwaitingExternalPayment)

	marker, err := s.pending.load(ctx, customerID)
	if err != nil {
		s.logg.Warn(ctx, "payment pending marker unreadable, continuing without it")
	}
	if marker != nil && marker.OrderID != orderID {
		s.logg.Warn(ctx, fmt.Sprintf("payment pending marker is for order %s, ignoring it", marker.OrderID))
		marker = nil
	}
	snapshot, err := s.sessions.LoadSnapshot(ctx, customerID)
	if err != nil {
		s.logg.Warn(ctx, "checkout snapshot unreadable, continuing without it")
	}

	result := &Result{OrderID: orderID}
	result.setTotals(s.orderTotals(ctx, orderID, marker, snapshot))

	if params.Success {
		if err := m.advance(StateConfirmed); err != nil {
			return nil, err
		}
		result.Success = true
		result.Message = "Payment received. Your order has been placed."
		s.withRedirect(result)
		var address *backend.Address
		if marker != nil {
			address = marker.SaveAddress
		}
		s.cleanup(ctx, customerID, orderID, snapshot, address)
	} else {
		if err := m.advance(StateError); err != nil {
			return nil, err
		}
		result.Message = "The payment was not completed. Your items are still in your cart, please try again."
	}
	result.State = m.current()

	if err := s.pending.clear(ctx, customerID); err != nil {
		s.logg.Warn(ctx, "failed to clear payment pending marker")
	}

	if result.Success {
		s.recordOutcome(PaymentVNPay, string(StateConfirmed))
	} else {
		s.recordOutcome(PaymentVNPay, "payment_failed")
	}
	return result, nil
}

// Confirmation renders a placed order from its id alone.
func (s *service) Confirmation(ctx context.Context, customerID, orderID string) (*Result, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.gateway.Order(ctx, backend.ID(orderID))
	if err != nil {
		return nil, err
	}
	result := &Result{
		Success: true,
		State:   StateConfirmed,
		OrderID: orderID,
		Message: "Your order has been placed.",
	}
	if order.ID != "" {
		result.OrderID = order.ID.String()
	}
	result.setTotals(totals{original: order.OriginalTotal, discount: order.DiscountAmount, final: order.FinalTotal})
	s.withRedirect(result)
	return result, nil
}

func (s *service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.cleanups.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveLines returns the selected lines, or the stored snapshot when the selection is empty.
func (s *service) resolveLines(ctx context.Context, customerID string) ([]selection.SnapshotLine, error) {
	lines, _, err := s.lines.Selected(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		return snapshotFromLines(lines), nil
	}

	snapshot, err := s.sessions.LoadSnapshot(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please select at least one item to check out.")
	}
	s.logg.Info(ctx, "selection empty, checking out from stored snapshot")
	return snapshot, nil
}

func (s *service) checkStock(ctx context.Context, customerID string, lines []selection.SnapshotLine) error {
	check, err := s.gateway.ValidateSelected(ctx, backend.StockCheckRequest{
		CustomerID:  backend.ID(customerID),
		CartItemIDs: cartItemIDs(lines),
	})
	if err != nil {
		return err
	}
	if check.Valid && len(check.InvalidItems) == 0 {
		return nil
	}

	issues := make([]string, 0, len(check.InvalidItems))
	for _, item := range check.InvalidItems {
		issues = append(issues, fmt.Sprintf("%s: requested %d, only %d in stock", item.ProductName, item.RequestedQuantity, item.AvailableQuantity))
	}
	message := strings.Join(issues, "\n")
	if message == "" {
		message = strings.TrimSpace(check.Message)
	}
	if message == "" {
		message = "Some items are no longer available in the requested quantity."
	}
	return pkgerrors.New(pkgerrors.CodeStockShortfall, message).
		WithDetails(map[string]any{"issues": issues, "reload": true})
}

// orderTotals prefers the backend's figures and falls back to what was stored before the
// redirect.
func (s *service) orderTotals(ctx context.Context, orderID string, marker *PendingPayment, snapshot []selection.SnapshotLine) totals {
	order, err := s.gateway.Order(ctx, backend.ID(orderID))
	if err == nil {
		fetched := totals{original: order.OriginalTotal, discount: order.DiscountAmount, final: order.FinalTotal}
		if !fetched.isZero() {
			return fetched
		}
	} else {
		s.logg.Warn(ctx, "order re-fetch failed, using locally stored totals")
	}

	subtotal := snapshotSubtotal(snapshot)
	if marker == nil {
		return newTotals(subtotal, decimal.Zero)
	}
	if subtotal.IsZero() || subtotal.LessThan(marker.Amount) {
		return totals{original: marker.Amount, discount: decimal.Zero, final: marker.Amount}
	}
	return totals{original: subtotal, discount: subtotal.Sub(marker.Amount), final: marker.Amount}
}

func (s *service) withRedirect(result *Result) {
	result.RedirectTo = s.cfg.ConfirmationRedirect
	result.RedirectAfterSeconds = int(s.cfg.RedirectAfter / time.Second)
}

func (s *service) recordOutcome(method, outcome string) {
	if s.metrics == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	s.metrics.IncOutcome(method, outcome)
}

func outcomeForError(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "failed"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return "invalid"
	case pkgerrors.CodeStockShortfall:
		return "stock_shortfall"
	case pkgerrors.CodeCouponInvalid:
		return "coupon_invalid"
	}
	return "failed"
}

func errInProgress() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "A checkout is already in progress. Please wait for it to finish.").
		WithDetails(map[string]any{"reason": "in_progress"})
}

// withOrderID tags a failure that happened after the order was already placed.
func withOrderID(err error, orderID string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "The payment could not be started.").
			WithDetails(map[string]any{"order_id": orderID})
	}
	details := map[string]any{"order_id": orderID}
	if existing, ok := typed.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	return pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(details)
}

func snapshotFromLines(lines []cart.Line) []selection.SnapshotLine {
	out := make([]selection.SnapshotLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, selection.SnapshotLine{
			CartItemID:  line.ID,
			ProductID:   line.Product.ID,
			ProductName: line.Product.ProductName,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice(),
		})
	}
	return out
}

func snapshotSubtotal(lines []selection.SnapshotLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func checkoutItems(lines []selection.SnapshotLine) []backend.CheckoutItem {
	items := make([]backend.CheckoutItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, backend.CheckoutItem{
			CartItemID: backend.ID(line.CartItemID),
			ProductID:  backend.ID(line.ProductID),
			Quantity:   line.Quantity,
			Price:      line.Price,
		})
	}
	return items
}
