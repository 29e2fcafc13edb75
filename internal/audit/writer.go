// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// writeTimeout bounds a single durable write attempt.
const writeTimeout = 5 * time.Second

// Writer performs blocking single-entry writes for critical actions.
// Storage failures never propagate to the caller: the entry is parked
// in the dead letter store (when configured) and the request
// continues. A circuit breaker keeps a down store from adding a full
// write timeout to every critical request.
type Writer struct {
	store      Store
	deadLetter *DeadLetter
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// NewWriter creates a Writer. deadLetter may be nil, in which case
// failed critical entries are dropped after logging.
func NewWriter(store Store, deadLetter *DeadLetter) *Writer {
	settings := gobreaker.Settings{
		Name:    "audit-writer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Audit writer circuit breaker state changed")
		},
	}

	return &Writer{
		store:      store,
		deadLetter: deadLetter,
		breaker:    gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Write durably persists one entry, blocking the caller. The returned
// error is always nil for the request path; failures are logged and
// the entry parked.
func (w *Writer) Write(ctx context.Context, entry *models.AuditLogEntry) {
	if entry == nil {
		return
	}

	_, err := w.breaker.Execute(func() (struct{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return struct{}{}, w.store.Save(writeCtx, entry)
	})
	if err == nil {
		return
	}

	logging.Error().
		Err(err).
		Str("entry_id", entry.ID).
		Str("action", string(entry.Action)).
		Msg("Critical audit write failed")
	w.park(entry)
}

// park moves a failed entry to the dead letter store so a critical
// event survives a transient storage outage.
func (w *Writer) park(entry *models.AuditLogEntry) {
	if w.deadLetter == nil {
		logging.Warn().Str("entry_id", entry.ID).Msg("No dead letter store, dropping critical audit entry")
		return
	}
	if err := w.deadLetter.Park(entry); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to park audit entry in dead letter store")
	}
}
