package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultJanitorInterval = time.Minute

// Janitor purges expired unverified accounts and stale reset codes.
type Janitor struct {
	users    UserRepository
	interval time.Duration
	logger   zerolog.Logger
}

func NewJanitor(users UserRepository, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &Janitor{users: users, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx, time.Now()); err != nil && ctx.Err() == nil {
				j.logger.Error().Err(err).Msg("janitor sweep")
			}
		}
	}
}

// Sweep removes everything that expired before now.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) error {
	deleted, err := j.users.DeleteExpiredUnverified(ctx, now)
	if err != nil {
		return err
	}
	cleared, err := j.users.ClearExpiredResetCodes(ctx, now)
	if err != nil {
		return err
	}
	if deleted > 0 || cleared > 0 {
		j.logger.Info().
			Int64("deleted_accounts", deleted).
			Int64("cleared_reset_codes", cleared).
			Msg("janitor sweep")
	}
	return nil
}
