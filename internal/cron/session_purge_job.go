package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type expiredSessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionPurgeJob struct {
	logg   *logger.Logger
	purger expiredSessionPurger
}

// NewSessionPurgeJob deletes checkout session rows whose TTL has passed. Reads already ignore
// them; this keeps the table from growing.
func NewSessionPurgeJob(logg *logger.Logger, purger expiredSessionPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if purger == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &sessionPurgeJob{logg: logg, purger: purger}, nil
}

func (j *sessionPurgeJob) Name() string { return "session-purge" }

func (j *sessionPurgeJob) Run(ctx context.Context) error {
	deleted, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("session purge: %w", err)
	}
	if deleted > 0 {
		j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "expired checkout sessions purged")
	}
	return nil
}
