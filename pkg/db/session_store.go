package db

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionState is one persisted checkout session entry.
type SessionState struct {
	Key       string     `gorm:"column:state_key;primaryKey"`
	Value     string     `gorm:"column:value;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (SessionState) TableName() string { return "session_state" }

// SessionStore implements kv.Store on the session_state table.
type SessionStore struct {
	client *Client
	now    func() time.Time
}

func NewSessionStore(client *Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func (s *SessionStore) Get(ctx context.Context, key string) (string, error) {
	var row SessionState
	err := s.client.DB().WithContext(ctx).
		Where("state_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *SessionStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now().UTC()
	row := SessionState{Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		row.ExpiresAt = &expires
	}
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "state_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *SessionStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.DB().WithContext(ctx).
		Where("state_key IN ?", keys).
		Delete(&SessionState{}).Error
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// PurgeExpired deletes rows whose TTL has elapsed and reports how many went.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.client.DB().WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&SessionState{})
	return res.RowsAffected, res.Error
}

var _ kv.Store = (*SessionStore)(nil)
