// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arbiterhq/arbiter/internal/audit"
	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// AuditHandlers provides HTTP handlers for the audit query surface.
type AuditHandlers struct {
	store audit.Store
}

// NewAuditHandlers creates audit handlers over the given store.
func NewAuditHandlers(store audit.Store) *AuditHandlers {
	return &AuditHandlers{store: store}
}

// List handles GET /api/v1/audit.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.store.Query(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to query audit entries")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}

	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to count audit entries")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Get handles GET /api/v1/audit/{id}.
func (h *AuditHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrEntryNotFound) {
			respondError(w, r, http.StatusNotFound, "Audit entry not found")
			return
		}
		logging.Error().Err(err).Str("id", id).Msg("Failed to get audit entry")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// Stats handles GET /api/v1/audit/stats.
func (h *AuditHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to get audit stats")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Export handles GET /api/v1/audit/export. Entries are exported with
// the same redaction they were stored with, up to the hard row cap.
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	format, err := audit.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = audit.MaxExportRows
	filter.Offset = 0

	entries, err := h.store.Query(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to query audit entries for export")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	data, err := audit.Export(entries, format)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode audit export")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Client went away during audit export")
	}
}

// parseAuditFilter builds a QueryFilter from list/export query
// parameters. Unparseable values are rejected rather than ignored so
// a typo does not silently widen a query.
func parseAuditFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()

	filter.ActorID = q.Get("actor_id")
	filter.HTTPMethod = q.Get("method")
	filter.IPAddress = q.Get("ip")
	filter.SearchText = q.Get("q")

	for _, a := range q["action_type"] {
		action := models.ActionType(a)
		if !action.Valid() {
			return filter, errors.New("unknown action_type " + strconv.Quote(a))
		}
		filter.ActionTypes = append(filter.ActionTypes, action)
	}
	filter.Modules = append(filter.Modules, q["module"]...)

	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("success must be true or false")
		}
		filter.Success = &success
	}

	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("start_time must be RFC3339")
		}
		filter.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("end_time must be RFC3339")
		}
		filter.EndTime = &t
	}

	if v := q.Get("sort"); v != "" {
		filter.OrderBy = v
	}
	if v := q.Get("order"); v != "" {
		filter.OrderDesc = v != "asc"
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	// The list surface pages at MaxPageSize; Export overrides the
	// limit afterwards with the export row cap.
	if filter.Limit > audit.MaxPageSize {
		filter.Limit = audit.MaxPageSize
	}
	filter.Normalize()
	return filter, nil
}
