package checkout

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"github.com/shopspring/decimal"
)

const pendingKey = "payment_pending"

// PendingPayment marks an order handed off to the payment gateway.
type PendingPayment struct {
	OrderID     string           `json:"orderId"`
	Amount      decimal.Decimal  `json:"amount"`
	CreatedAt   time.Time        `json:"createdAt"`
	CouponCode  string           `json:"couponCode,omitempty"`
	SaveAddress *backend.Address `json:"saveAddress,omitempty"`
}

type pendingStore struct {
	kv  kv.Store
	ttl time.Duration
}

func (p pendingStore) save(ctx context.Context, customerID string, marker PendingPayment) error {
	if err := kv.SetJSON(ctx, p.kv, kv.CheckoutKey(customerID, pendingKey), marker, p.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	return nil
}

// load returns nil when no marker is stored.
func (p pendingStore) load(ctx context.Context, customerID string) (*PendingPayment, error) {
	var marker PendingPayment
	found, err := kv.GetJSON(ctx, p.kv, kv.CheckoutKey(customerID, pendingKey), &marker)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	if !found {
		return nil, nil
	}
	return &marker, nil
}

func (p pendingStore) clear(ctx context.Context, customerID string) error {
	if err := p.kv.Del(ctx, kv.CheckoutKey(customerID, pendingKey)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
	}
	return nil
}
