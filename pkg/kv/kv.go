// Package kv defines the durable key-value port that checkout session state is written to.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store with per-entry TTL. A zero TTL means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

const checkoutPrefix = "sf:checkout:"

// CheckoutKey builds the per-customer checkout session key for name, e.g. sf:checkout:42:selection.
func CheckoutKey(customerID, name string) string {
	return checkoutPrefix + customerID + ":" + name
}
