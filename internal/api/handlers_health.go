// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package api

import (
	"net/http"
	"time"

	"github.com/arbiterhq/arbiter/internal/database"
)

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	db      *database.DB
	started time.Time
}

// NewHealthHandlers creates health handlers.
func NewHealthHandlers(db *database.DB) *HealthHandlers {
	return &HealthHandlers{db: db, started: time.Now()}
}

// Live handles GET /healthz/live. It answers 200 whenever the process
// is up; it makes no dependency checks.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready handles GET /healthz/ready. Readiness requires a reachable
// database; everything else degrades without refusing traffic.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "ready"
	code := http.StatusOK
	if !dbConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":             status,
		"database_connected": dbConnected,
		"uptime_seconds":     int64(time.Since(h.started).Seconds()),
	})
}
