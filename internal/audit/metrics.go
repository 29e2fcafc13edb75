// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesRecordedTotal counts entries accepted by the recorder,
	// labeled by dispatch path and action type.
	EntriesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_recorded_total",
			Help: "Total number of audit entries accepted for recording",
		},
		[]string{"path", "action"},
	)

	// QueueDepth tracks the current async buffer depth.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current number of audit entries waiting in the async queue",
		},
	)

	// QueueWrittenTotal counts entries durably written by the drain loop.
	QueueWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_queue_written_total",
			Help: "Total number of queued audit entries durably written",
		},
	)

	// QueueDroppedTotal counts entries lost from the async path, by reason.
	QueueDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_queue_dropped_total",
			Help: "Total number of audit entries dropped from the async queue",
		},
		[]string{"reason"},
	)

	// RetentionPurgedTotal counts entries removed by the retention job.
	RetentionPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_retention_purged_total",
			Help: "Total number of audit entries purged by retention",
		},
	)

	// WriteDuration tracks durable write latency by dispatch path.
	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_write_duration_seconds",
			Help:    "Duration of durable audit writes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"path"},
	)
)
