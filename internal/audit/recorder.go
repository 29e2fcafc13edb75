// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// Recorder is the single entry point the middleware records through.
// It builds the entry, classifies it, and dispatches it over the
// synchronous or queued path. Recording never fails the caller.
type Recorder struct {
	builder *Builder
	writer  *Writer
	queue   *Queue
}

// NewRecorder wires the pipeline stages together.
func NewRecorder(builder *Builder, writer *Writer, queue *Queue) *Recorder {
	return &Recorder{builder: builder, writer: writer, queue: queue}
}

// Record builds and dispatches one audit entry. Critical actions
// block until the write attempt completes; routine actions return
// after enqueueing.
func (r *Recorder) Record(ctx context.Context, req Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().Interface("panic", rec).Msg("Audit recording panicked")
		}
	}()

	entry := r.builder.Build(req)

	if IsCritical(req.Method, req.Path) {
		EntriesRecordedTotal.WithLabelValues("sync", string(entry.Action)).Inc()
		start := time.Now()
		r.writer.Write(ctx, entry)
		WriteDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
		return
	}

	EntriesRecordedTotal.WithLabelValues("async", string(entry.Action)).Inc()
	r.queue.Enqueue(entry)
}

// RecordEntry dispatches an already-built entry. Used by callers that
// construct entries outside the request path, such as replay tooling.
func (r *Recorder) RecordEntry(ctx context.Context, entry *models.AuditLogEntry) {
	if entry == nil {
		return
	}
	if IsCritical(entry.Method, entry.Path) {
		r.writer.Write(ctx, entry)
		return
	}
	r.queue.Enqueue(entry)
}
