package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/internal/selection"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"go.uber.org/multierr"
)

// cleanup runs the post-order housekeeping off the request path. The order is already placed,
// so failures are only logged.
func (s *service) cleanup(ctx context.Context, customerID, orderID string, lines []selection.SnapshotLine, address *backend.Address) {
	detached := context.WithoutCancel(ctx)
	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()
		cctx, cancel := context.WithTimeout(detached, s.cfg.CleanupTimeout)
		defer cancel()

		if err := s.runCleanup(cctx, customerID, orderID, lines, address); err != nil {
			s.logg.Error(cctx, "checkout clean-up incomplete", err)
			return
		}
		s.logg.Debug(cctx, "checkout clean-up finished")
	}()
}

func (s *service) runCleanup(ctx context.Context, customerID, orderID string, lines []selection.SnapshotLine, address *backend.Address) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = multierr.Append(err, fmt.Errorf("clean-up panic: %v", r))
		}
	}()

	if ids := cartItemIDs(lines); len(ids) > 0 {
		err = multierr.Append(err, wrapStep("clear cart lines", s.gateway.ClearSelected(ctx, backend.ClearSelectedRequest{
			CustomerID:  backend.ID(customerID),
			CartItemIDs: ids,
		})))
	}
	err = multierr.Append(err, wrapStep("reset selection", s.sessions.Reset(ctx, customerID)))
	err = multierr.Append(err, wrapStep("remove coupon", s.coupons.Remove(ctx, customerID)))
	if address != nil {
		err = multierr.Append(err, wrapStep("save address", s.gateway.SaveAddress(ctx, *address)))
	}
	err = multierr.Append(err, wrapStep("notify", s.gateway.Notify(ctx, backend.Notification{
		CustomerID: backend.ID(customerID),
		Title:      "Order placed",
		Message:    fmt.Sprintf("Your order #%s has been placed successfully.", orderID),
		Type:       "ORDER",
	})))
	return err
}

func wrapStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}

func cartItemIDs(lines []selection.SnapshotLine) []backend.ID {
	ids := make([]backend.ID, 0, len(lines))
	for _, line := range lines {
		if line.CartItemID != "" {
			ids = append(ids, backend.ID(line.CartItemID))
		}
	}
	return ids
}
