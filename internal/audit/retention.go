// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/internal/logging"
)

// RetentionConfig tunes the purge job.
type RetentionConfig struct {
	// RetentionDays is the horizon; entries older than this are purged.
	RetentionDays int

	// Interval is how often the purge runs.
	Interval time.Duration
}

// DefaultRetentionConfig returns the production defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays: 365,
		Interval:      24 * time.Hour,
	}
}

// Retention deletes audit entries past the retention horizon on a
// fixed schedule. A failed purge is logged and naturally retried on
// the next tick.
type Retention struct {
	store  Store
	config RetentionConfig
}

// NewRetention creates the retention job.
func NewRetention(store Store, config RetentionConfig) *Retention {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 365
	}
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	return &Retention{store: store, config: config}
}

// Serve runs one purge immediately, then on every tick until ctx is
// cancelled. It satisfies the supervisor service contract.
func (r *Retention) Serve(ctx context.Context) error {
	r.PurgeOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.PurgeOnce(ctx)
		}
	}
}

// String names the retention job in supervisor logs.
func (r *Retention) String() string { return "audit-retention" }

// PurgeOnce deletes everything older than the horizon. Returns the
// number of entries removed; failures are logged, not returned, so a
// transient storage error never stops the schedule.
func (r *Retention) PurgeOnce(ctx context.Context) int64 {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.config.RetentionDays)

	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Time("cutoff", cutoff).Msg("Audit retention purge failed")
		return 0
	}

	if deleted > 0 {
		RetentionPurgedTotal.Add(float64(deleted))
		logging.Info().Int64("purged", deleted).Time("cutoff", cutoff).Msg("Purged expired audit entries")
	}
	return deleted
}
