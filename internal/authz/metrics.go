// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts access decisions by module, required level
	// and outcome.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of module access decisions",
		},
		[]string{"module", "level", "decision"},
	)

	// DecisionDuration tracks decision latency, split by cache hit.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Duration of module access decisions in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
		[]string{"cache_hit"},
	)

	// CacheHitsTotal counts decision cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Total number of decision cache hits",
		},
	)

	// CacheMissesTotal counts decision cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_misses_total",
			Help: "Total number of decision cache misses",
		},
	)

	// GrantsTotal counts permission grants by module and level.
	GrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_grants_total",
			Help: "Total number of permission grants",
		},
		[]string{"module", "level"},
	)

	// RevocationsTotal counts permission revocations by module.
	RevocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_revocations_total",
			Help: "Total number of permission revocations",
		},
		[]string{"module"},
	)

	// DeniedTotal counts 403 responses issued by the middleware.
	DeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denied_total",
			Help: "Total number of requests denied by authorization middleware",
		},
		[]string{"module", "level"},
	)
)
