// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// QueueConfig tunes the async write path.
type QueueConfig struct {
	// DrainInterval is the tick between drain cycles.
	DrainInterval time.Duration

	// DrainBatchSize bounds how many entries one cycle attempts.
	DrainBatchSize int

	// MaxRetries is the attempt count before an entry is dropped.
	MaxRetries int

	// Capacity bounds the in-memory buffer; Enqueue drops beyond it.
	Capacity int

	// FlushTimeout bounds the shutdown flush.
	FlushTimeout time.Duration
}

// DefaultQueueConfig returns the production defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		DrainInterval:  time.Second,
		DrainBatchSize: 10,
		MaxRetries:     3,
		Capacity:       10000,
		FlushTimeout:   5 * time.Second,
	}
}

// queuedEntry pairs an entry with its retry bookkeeping.
type queuedEntry struct {
	entry      *models.AuditLogEntry
	retryCount int
	enqueuedAt time.Time
}

// Queue is the ordered in-memory buffer for routine audit entries. A
// recurring tick drains a bounded batch; failed writes are moved to
// the tail until MaxRetries, then dropped. Enqueue never blocks and
// never fails the caller.
type Queue struct {
	config QueueConfig
	store  Store

	mu      sync.Mutex
	entries []queuedEntry

	// draining is the single-flight guard: a tick that fires while a
	// previous drain still holds it is skipped, never stacked.
	draining sync.Mutex
}

// NewQueue creates a Queue draining into store.
func NewQueue(store Store, config QueueConfig) *Queue {
	if config.DrainInterval <= 0 {
		config.DrainInterval = time.Second
	}
	if config.DrainBatchSize <= 0 {
		config.DrainBatchSize = 10
	}
	if config.Capacity <= 0 {
		config.Capacity = 10000
	}
	return &Queue{config: config, store: store}
}

// Enqueue appends an entry for later persistence. When the buffer is
// at capacity the entry is dropped and logged; the caller is never
// blocked or failed.
func (q *Queue) Enqueue(entry *models.AuditLogEntry) {
	if entry == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.config.Capacity {
		QueueDroppedTotal.WithLabelValues("capacity").Inc()
		logging.Warn().Str("entry_id", entry.ID).Int("capacity", q.config.Capacity).Msg("Audit queue full, dropping entry")
		return
	}

	q.entries = append(q.entries, queuedEntry{entry: entry, enqueuedAt: time.Now()})
	QueueDepth.Set(float64(len(q.entries)))
}

// Len returns the current buffer depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Serve runs the drain loop until ctx is cancelled, then performs the
// bounded shutdown flush. It satisfies the supervisor service
// contract.
func (q *Queue) Serve(ctx context.Context) error {
	ticker := time.NewTicker(q.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.Flush()
			return ctx.Err()
		case <-ticker.C:
			q.DrainOnce(context.Background())
		}
	}
}

// String names the queue in supervisor logs.
func (q *Queue) String() string { return "audit-queue" }

// DrainOnce attempts one drain cycle. If another cycle is already in
// progress it returns immediately. Returns the number of entries
// durably written.
func (q *Queue) DrainOnce(ctx context.Context) int {
	if !q.draining.TryLock() {
		return 0
	}
	defer q.draining.Unlock()

	batch := q.takeBatch()
	if len(batch) == 0 {
		return 0
	}

	written := 0
	var requeue []queuedEntry
	for _, item := range batch {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := q.store.Save(writeCtx, item.entry)
		cancel()
		if err == nil {
			written++
			QueueWrittenTotal.Inc()
			continue
		}

		item.retryCount++
		if item.retryCount >= q.config.MaxRetries {
			QueueDroppedTotal.WithLabelValues("retries").Inc()
			logging.Error().
				Err(err).
				Str("entry_id", item.entry.ID).
				Int("retries", item.retryCount).
				Msg("Dropping audit entry after repeated write failures")
			continue
		}
		requeue = append(requeue, item)
	}

	if len(requeue) > 0 {
		q.mu.Lock()
		q.entries = append(q.entries, requeue...)
		QueueDepth.Set(float64(len(q.entries)))
		q.mu.Unlock()
	}

	return written
}

// takeBatch removes up to DrainBatchSize entries from the head.
func (q *Queue) takeBatch() []queuedEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.config.DrainBatchSize
	if n > len(q.entries) {
		n = len(q.entries)
	}
	if n == 0 {
		return nil
	}

	batch := make([]queuedEntry, n)
	copy(batch, q.entries[:n])
	q.entries = append(q.entries[:0], q.entries[n:]...)
	QueueDepth.Set(float64(len(q.entries)))
	return batch
}

// Flush repeatedly drains until the buffer is empty or FlushTimeout
// elapses. Anything left is logged as lost; shutdown proceeds
// regardless.
func (q *Queue) Flush() {
	timeout := q.config.FlushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for q.Len() > 0 && time.Now().Before(deadline) {
		if q.DrainOnce(context.Background()) == 0 {
			// Either another drain holds the guard or every write in
			// the batch failed; back off briefly before retrying.
			time.Sleep(50 * time.Millisecond)
		}
	}

	if remaining := q.Len(); remaining > 0 {
		QueueDroppedTotal.WithLabelValues("shutdown").Add(float64(remaining))
		logging.Error().Int("lost", remaining).Msg("Audit queue flush deadline elapsed, entries lost")
	}
}
