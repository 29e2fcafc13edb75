// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/arbiterhq/arbiter/internal/models"
)

// ErrEntryNotFound is returned by Get for unknown entry IDs.
var ErrEntryNotFound = errors.New("audit entry not found")

const (
	// DefaultPageSize is applied when a query names no limit.
	DefaultPageSize = 50

	// MaxPageSize caps paginated list queries.
	MaxPageSize = 100

	// MaxExportRows caps a single export regardless of filter.
	MaxExportRows = 10000
)

// Store persists audit log entries. Entries are immutable once saved;
// the only delete path is retention.
type Store interface {
	Save(ctx context.Context, entry *models.AuditLogEntry) error
	Get(ctx context.Context, id string) (*models.AuditLogEntry, error)
	Query(ctx context.Context, filter QueryFilter) ([]models.AuditLogEntry, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// QueryFilter narrows audit queries. Zero values mean "no filter".
type QueryFilter struct {
	ActorID     string              `json:"actor_id,omitempty"`
	ActionTypes []models.ActionType `json:"action_types,omitempty"`
	Modules     []string            `json:"modules,omitempty"`
	HTTPMethod  string              `json:"http_method,omitempty"`
	IPAddress   string              `json:"ip_address,omitempty"`

	// Success filters by derived outcome: status in [1,400) is a
	// success, anything else a failure. Nil means both.
	Success *bool `json:"success,omitempty"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// SearchText matches case-insensitively against actor email,
	// action description and endpoint path.
	SearchText string `json:"search_text,omitempty"`

	// OrderBy must name a whitelisted column; anything else falls
	// back to created_at.
	OrderBy   string `json:"order_by,omitempty"`
	OrderDesc bool   `json:"order_desc,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// DefaultQueryFilter returns a filter for the most recent entries.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{
		OrderBy:   "created_at",
		OrderDesc: true,
		Limit:     DefaultPageSize,
	}
}

// Normalize applies the pagination default and the hard row ceiling.
// Stores call this before executing a query; the tighter MaxPageSize
// clamp for the list surface is applied at the API boundary so export
// queries can carry a limit up to MaxExportRows.
func (f *QueryFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxExportRows {
		f.Limit = MaxExportRows
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Stats summarizes the contents of the audit store.
type Stats struct {
	TotalEntries    int64            `json:"total_entries"`
	EntriesByAction map[string]int64 `json:"entries_by_action"`
	EntriesByModule map[string]int64 `json:"entries_by_module"`
	FailureCount    int64            `json:"failure_count"`
	OldestEntry     *time.Time       `json:"oldest_entry,omitempty"`
	NewestEntry     *time.Time       `json:"newest_entry,omitempty"`
}
