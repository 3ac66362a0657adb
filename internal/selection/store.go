// Package selection persists which cart lines a shopper has chosen for checkout, plus the
// last-known-good snapshot of those lines used after an external payment redirect.
package selection

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"github.com/shopspring/decimal"
)

const (
	selectionKey = "selection"
	snapshotKey  = "snapshot"
)

// SnapshotLine is the denormalized copy of a selected line.
type SnapshotLine struct {
	CartItemID  string          `json:"cartItemId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Store reads and writes the selection through a kv.Store. Every mutation is written before the
// call returns.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

func NewStore(store kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

// Load resolves the selection against the current cart. A stored selection is filtered to ids
// still in the cart; with nothing stored every line is selected; a one-line cart always selects
// that line.
func (s *Store) Load(ctx context.Context, customerID string, cartLineIDs []string) (Set, error) {
	cart := NewSet(cartLineIDs...)

	var resolved Set
	if len(cart) == 1 {
		resolved = cart
	} else {
		stored, err := s.read(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if len(stored) == 0 {
			resolved = cart
		} else {
			resolved = stored.Intersect(cart)
		}
	}

	if err := s.write(ctx, customerID, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Current returns the stored selection without reconciling it against a cart.
func (s *Store) Current(ctx context.Context, customerID string) (Set, error) {
	return s.read(ctx, customerID)
}

func (s *Store) Toggle(ctx context.Context, customerID, id string) (Set, error) {
	return s.mutate(ctx, customerID, func(current Set) Set { return current.Toggle(id) })
}

func (s *Store) Remove(ctx context.Context, customerID, id string) (Set, error) {
	return s.mutate(ctx, customerID, func(current Set) Set { return current.Without(id) })
}

func (s *Store) SelectAll(ctx context.Context, customerID string, cartLineIDs []string) (Set, error) {
	all := NewSet(cartLineIDs...)
	if err := s.write(ctx, customerID, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) Clear(ctx context.Context, customerID string) (Set, error) {
	empty := Set{}
	if err := s.write(ctx, customerID, empty); err != nil {
		return nil, err
	}
	return empty, nil
}

// SaveSnapshot replaces the stored snapshot of the selected lines.
func (s *Store) SaveSnapshot(ctx context.Context, customerID string, lines []SnapshotLine) error {
	if lines == nil {
		lines = []SnapshotLine{}
	}
	return s.put(ctx, kv.CheckoutKey(customerID, snapshotKey), lines)
}

// LoadSnapshot returns the stored snapshot, or nil when there is none.
func (s *Store) LoadSnapshot(ctx context.Context, customerID string) ([]SnapshotLine, error) {
	var lines []SnapshotLine
	found, err := s.get(ctx, kv.CheckoutKey(customerID, snapshotKey), &lines)
	if err != nil || !found {
		return nil, err
	}
	return lines, nil
}

// Reset forgets both the selection and the snapshot.
func (s *Store) Reset(ctx context.Context, customerID string) error {
	if err := s.kv.Del(ctx, kv.CheckoutKey(customerID, selectionKey), kv.CheckoutKey(customerID, snapshotKey)); err != nil {
		return storeError(err)
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, customerID string, fn func(Set) Set) (Set, error) {
	current, err := s.read(ctx, customerID)
	if err != nil {
		return nil, err
	}
	next := fn(current)
	if err := s.write(ctx, customerID, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) read(ctx context.Context, customerID string) (Set, error) {
	var ids []string
	if _, err := s.get(ctx, kv.CheckoutKey(customerID, selectionKey), &ids); err != nil {
		return nil, err
	}
	return NewSet(ids...), nil
}

func (s *Store) write(ctx context.Context, customerID string, set Set) error {
	if set == nil {
		set = Set{}
	}
	return s.put(ctx, kv.CheckoutKey(customerID, selectionKey), set)
}

func (s *Store) get(ctx context.Context, key string, out any) (bool, error) {
	found, err := kv.GetJSON(ctx, s.kv, key, out)
	if err != nil {
		return false, storeError(err)
	}
	return found, nil
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	if err := kv.SetJSON(ctx, s.kv, key, value, s.ttl); err != nil {
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable")
}
