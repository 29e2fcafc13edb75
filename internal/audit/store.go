// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/models"
)

// MemoryStore implements Store with in-memory storage. Suitable for
// development and tests; data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.AuditLogEntry
	maxLen  int
}

// NewMemoryStore creates an in-memory audit store bounded at maxLen
// entries (oldest evicted first).
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		entries: make([]models.AuditLogEntry, 0, maxLen),
		maxLen:  maxLen,
	}
}

// Save persists one entry.
func (s *MemoryStore) Save(ctx context.Context, entry *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxLen > 0 && len(s.entries) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount == 0 {
			removeCount = 1
		}
		s.entries = s.entries[removeCount:]
	}

	s.entries = append(s.entries, *entry)
	return nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			entry := s.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrEntryNotFound
}

// Query retrieves entries matching the filter.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]models.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter.Normalize()

	var matched []models.AuditLogEntry
	for i := range s.entries {
		if matchesFilter(&s.entries[i], &filter) {
			matched = append(matched, s.entries[i])
		}
	}

	sortEntries(matched, filter.OrderBy, filter.OrderDesc)

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of entries matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.entries {
		if matchesFilter(&s.entries[i], &filter) {
			count++
		}
	}
	return count, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for i := range s.entries {
		if s.entries[i].CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s.entries[i])
	}
	s.entries = kept
	return deleted, nil
}

// GetStats summarizes the store contents.
func (s *MemoryStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		EntriesByAction: make(map[string]int64),
		EntriesByModule: make(map[string]int64),
	}

	for i := range s.entries {
		e := &s.entries[i]
		stats.TotalEntries++
		stats.EntriesByAction[string(e.Action)]++
		if e.Module != "" {
			stats.EntriesByModule[e.Module]++
		}
		if !e.Success() {
			stats.FailureCount++
		}
		if stats.OldestEntry == nil || e.CreatedAt.Before(*stats.OldestEntry) {
			t := e.CreatedAt
			stats.OldestEntry = &t
		}
		if stats.NewestEntry == nil || e.CreatedAt.After(*stats.NewestEntry) {
			t := e.CreatedAt
			stats.NewestEntry = &t
		}
	}
	return stats, nil
}

func matchesFilter(e *models.AuditLogEntry, f *QueryFilter) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if len(f.ActionTypes) > 0 && !containsAction(f.ActionTypes, e.Action) {
		return false
	}
	if len(f.Modules) > 0 && !containsString(f.Modules, e.Module) {
		return false
	}
	if f.HTTPMethod != "" && e.Method != f.HTTPMethod {
		return false
	}
	if f.IPAddress != "" && e.IPAddress != f.IPAddress {
		return false
	}
	if f.Success != nil && e.Success() != *f.Success {
		return false
	}
	if f.StartTime != nil && e.CreatedAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.CreatedAt.After(*f.EndTime) {
		return false
	}
	if f.SearchText != "" {
		needle := strings.ToLower(f.SearchText)
		if !strings.Contains(strings.ToLower(e.ActorEmail), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.Path), needle) {
			return false
		}
	}
	return true
}

func containsAction(actions []models.ActionType, a models.ActionType) bool {
	for _, v := range actions {
		if v == a {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func sortEntries(entries []models.AuditLogEntry, orderBy string, desc bool) {
	less := func(a, b *models.AuditLogEntry) bool {
		switch orderBy {
		case "actor_id":
			return a.ActorID < b.ActorID
		case "action_type":
			return a.Action < b.Action
		case "module":
			return a.Module < b.Module
		case "response_status":
			return a.Status < b.Status
		case "response_time_ms":
			return a.LatencyMS < b.LatencyMS
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(&entries[j], &entries[i])
		}
		return less(&entries[i], &entries[j])
	})
}
