// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/models"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(0)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := []*models.AuditLogEntry{
		{ID: "1", ActorID: "alice", ActorEmail: "alice@example.com", Action: models.ActionLogin,
			Module: "auth", Method: "POST", Path: "/api/v1/auth/login", Status: 200,
			IPAddress: "203.0.113.5", CreatedAt: base},
		{ID: "2", ActorID: "alice", ActorEmail: "alice@example.com", Action: models.ActionCreate,
			Module: "users", Method: "POST", Path: "/api/v1/users", Status: 201,
			Description: "created bob", CreatedAt: base.Add(time.Hour)},
		{ID: "3", ActorID: "bob", ActorEmail: "bob@example.com", Action: models.ActionView,
			Module: "finance", Method: "GET", Path: "/api/v1/finance/invoices", Status: 403,
			CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", ActorID: "bob", ActorEmail: "bob@example.com", Action: models.ActionDelete,
			Module: "users", Method: "DELETE", Path: "/api/v1/users/9", Status: 200,
			CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, e := range entries {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	return store
}

func TestMemoryStoreGet(t *testing.T) {
	store := seedStore(t)

	entry, err := store.Get(context.Background(), "3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.ActorID != "bob" || entry.Status != 403 {
		t.Errorf("got %+v", entry)
	}

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrEntryNotFound", err)
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	success := true
	failure := false

	tests := []struct {
		name    string
		filter  QueryFilter
		wantIDs []string
	}{
		{"by actor", QueryFilter{ActorID: "alice"}, []string{"1", "2"}},
		{"by action", QueryFilter{ActionTypes: []models.ActionType{models.ActionDelete}}, []string{"4"}},
		{"by module", QueryFilter{Modules: []string{"users"}}, []string{"2", "4"}},
		{"by method", QueryFilter{HTTPMethod: "POST"}, []string{"1", "2"}},
		{"by ip", QueryFilter{IPAddress: "203.0.113.5"}, []string{"1"}},
		{"failures only", QueryFilter{Success: &failure}, []string{"3"}},
		{"successes only", QueryFilter{Success: &success}, []string{"1", "2", "4"}},
		{"search email", QueryFilter{SearchText: "bob@"}, []string{"3", "4"}},
		{"search description", QueryFilter{SearchText: "created bob"}, []string{"2"}},
		{"search path", QueryFilter{SearchText: "invoices"}, []string{"3"}},
		{"no match", QueryFilter{ActorID: "carol"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("got ids %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("got ids %v, want %v", ids, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestMemoryStoreQueryTimeRange(t *testing.T) {
	store := seedStore(t)
	start := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)

	got, err := store.Query(context.Background(), QueryFilter{StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("time range returned %d entries", len(got))
	}
}

func TestMemoryStoreQueryPagination(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	page, err := store.Query(ctx, QueryFilter{OrderBy: "created_at", OrderDesc: true, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 2 || page[0].ID != "4" || page[1].ID != "3" {
		t.Errorf("first page = %v", ids(page))
	}

	page, err = store.Query(ctx, QueryFilter{OrderBy: "created_at", OrderDesc: true, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 2 || page[0].ID != "2" || page[1].ID != "1" {
		t.Errorf("second page = %v", ids(page))
	}

	page, err = store.Query(ctx, QueryFilter{Offset: 100})
	if err != nil || len(page) != 0 {
		t.Errorf("out-of-range offset returned %d entries, err %v", len(page), err)
	}
}

func TestMemoryStoreQueryHonorsLimitsAbovePageSize(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < MaxPageSize+20; i++ {
		if err := store.Save(ctx, testEntry(fmt.Sprintf("n%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	// Export queries carry limits above the list page size; the store
	// must not re-clamp them down to MaxPageSize.
	got, err := store.Query(ctx, QueryFilter{Limit: MaxExportRows})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != MaxPageSize+20 {
		t.Errorf("got %d entries, want all %d", len(got), MaxPageSize+20)
	}
}

func TestQueryFilterNormalize(t *testing.T) {
	tests := []struct {
		name       string
		filter     QueryFilter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", QueryFilter{}, DefaultPageSize, 0},
		{"negative offset reset", QueryFilter{Limit: 10, Offset: -5}, 10, 0},
		{"above page size preserved", QueryFilter{Limit: MaxPageSize + 1}, MaxPageSize + 1, 0},
		{"export cap is the ceiling", QueryFilter{Limit: MaxExportRows + 1}, MaxExportRows, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Normalize()
			if tt.filter.Limit != tt.wantLimit || tt.filter.Offset != tt.wantOffset {
				t.Errorf("Normalize() = limit %d offset %d, want %d / %d",
					tt.filter.Limit, tt.filter.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := seedStore(t)

	stats, err := store.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalEntries != 4 {
		t.Errorf("total = %d, want 4", stats.TotalEntries)
	}
	if stats.EntriesByAction["login"] != 1 || stats.EntriesByModule["users"] != 2 {
		t.Errorf("breakdowns = %v / %v", stats.EntriesByAction, stats.EntriesByModule)
	}
	if stats.FailureCount != 1 {
		t.Errorf("failures = %d, want 1", stats.FailureCount)
	}
	if stats.OldestEntry == nil || stats.NewestEntry == nil || !stats.OldestEntry.Before(*stats.NewestEntry) {
		t.Errorf("time range = %v .. %v", stats.OldestEntry, stats.NewestEntry)
	}
}

func ids(entries []models.AuditLogEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

