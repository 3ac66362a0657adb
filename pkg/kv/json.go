package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// GetJSON decodes the value at key into out. found is false when the key is absent or the
// stored value does not decode; only store failures are returned as errors.
func GetJSON(ctx context.Context, store Store, key string, out any) (found bool, err error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value and stores it at key.
func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(data), ttl)
}
