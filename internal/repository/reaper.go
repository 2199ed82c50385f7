// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/votany/internal/metrics"
)

// Reaper periodically removes expired reset tokens and unverified users.
// Lookups already ignore expired rows; the reaper only reclaims space.
type Reaper struct {
	repo     *Repository
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewReaper creates a reaper. m may be nil.
func NewReaper(repo *Repository, interval time.Duration, m *metrics.Metrics) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{repo: repo, interval: interval, metrics: m}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("reaper_sweep_failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes all expired rows and returns how many users and tokens went.
func (r *Reaper) Sweep(ctx context.Context) (users, tokens int64, err error) {
	tokens, err = r.repo.DeleteExpiredResetTokens(ctx)
	if err != nil {
		return 0, 0, err
	}
	users, err = r.repo.DeleteExpiredUsers(ctx)
	if err != nil {
		return 0, tokens, err
	}

	r.metrics.Reaped("reset_tokens", tokens)
	r.metrics.Reaped("users", users)
	if users > 0 || tokens > 0 {
		slog.Debug("reaper_sweep", "users", users, "reset_tokens", tokens)
	}
	return users, tokens, nil
}
