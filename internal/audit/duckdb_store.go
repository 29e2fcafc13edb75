// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// DuckDBStore implements Store using DuckDB for durable persistence.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a DuckDB-backed audit store. The caller is
// responsible for ensuring the audit_log table exists.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Save persists one entry.
func (s *DuckDBStore) Save(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	query := `
		INSERT INTO audit_log (
			id, actor_id, actor_email, action_type, action_description,
			module, http_method, endpoint_path, request_payload,
			response_status, response_time_ms, ip_address, user_agent,
			geo_city, geo_country, before_state, after_state, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.ActorEmail,
		string(entry.Action),
		entry.Description,
		nullString(entry.Module),
		nullString(entry.Method),
		nullString(entry.Path),
		rawToNullString(entry.RequestPayload),
		nullInt(entry.Status),
		nullInt64(entry.LatencyMS),
		nullString(entry.IPAddress),
		nullString(entry.UserAgent),
		nullString(entry.GeoCity),
		nullString(entry.GeoCountry),
		rawToNullString(entry.BeforeState),
		rawToNullString(entry.AfterState),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM audit_log WHERE id = ?", id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// Query retrieves entries matching the filter.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]models.AuditLogEntry, error) {
	filter.Normalize()
	query, args := buildQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit entry row")
			continue
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	query, args := buildQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *DuckDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit entries: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

// GetStats summarizes the store contents.
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		EntriesByAction: make(map[string]int64),
		EntriesByModule: make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&stats.TotalEntries); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	actionCounts, err := s.countByColumn(ctx, "action_type")
	if err != nil {
		return nil, err
	}
	stats.EntriesByAction = actionCounts

	moduleCounts, err := s.countByColumn(ctx, "module")
	if err != nil {
		return nil, err
	}
	stats.EntriesByModule = moduleCounts

	failureQuery := "SELECT COUNT(*) FROM audit_log WHERE response_status IS NULL OR response_status <= 0 OR response_status >= 400"
	if err := s.db.QueryRowContext(ctx, failureQuery).Scan(&stats.FailureCount); err != nil {
		return nil, fmt.Errorf("failed to get failure count: %w", err)
	}

	var oldest, newest sql.NullTime
	err = s.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM audit_log").Scan(&oldest, &newest)
	if err == nil {
		if oldest.Valid {
			stats.OldestEntry = &oldest.Time
		}
		if newest.Valid {
			stats.NewestEntry = &newest.Time
		}
	}

	return stats, nil
}

// countByColumn executes a GROUP BY query and returns counts per value.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string) (map[string]int64, error) {
	result := make(map[string]int64)
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_log WHERE %s IS NOT NULL GROUP BY %s", column, column, column)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			result[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return result, nil
}

// selectColumns casts JSON columns to VARCHAR for proper scanning.
const selectColumns = `
	SELECT
		id, actor_id, actor_email, action_type, action_description,
		module, http_method, endpoint_path,
		CAST(request_payload AS VARCHAR) AS request_payload,
		response_status, response_time_ms, ip_address, user_agent,
		geo_city, geo_country,
		CAST(before_state AS VARCHAR) AS before_state,
		CAST(after_state AS VARCHAR) AS after_state,
		created_at
`

// buildQuery constructs the SQL query for the filter.
func buildQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	conditions, args := buildFilterConditions(filter)

	query := selectColumns + " FROM audit_log"
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_log"
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if !countOnly {
		query = appendOrderAndLimit(query, filter)
	}
	return query, args
}

func buildFilterConditions(filter QueryFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if cond := buildSliceCondition("action_type", filter.ActionTypes, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := buildSliceCondition("module", filter.Modules, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.HTTPMethod != "" {
		conditions = append(conditions, "http_method = ?")
		args = append(args, filter.HTTPMethod)
	}
	if filter.IPAddress != "" {
		conditions = append(conditions, "ip_address = ?")
		args = append(args, filter.IPAddress)
	}
	if filter.Success != nil {
		if *filter.Success {
			conditions = append(conditions, "response_status > 0 AND response_status < 400")
		} else {
			conditions = append(conditions, "(response_status IS NULL OR response_status <= 0 OR response_status >= 400)")
		}
	}
	if filter.StartTime != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.EndTime)
	}
	if filter.SearchText != "" {
		conditions = append(conditions,
			"(LOWER(actor_email) LIKE ? OR LOWER(action_description) LIKE ? OR LOWER(endpoint_path) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.SearchText) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	return conditions, args
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// appendOrderAndLimit adds ORDER BY, LIMIT, and OFFSET. Only
// whitelisted columns may be sorted on; anything else falls back to
// created_at.
func appendOrderAndLimit(query string, filter QueryFilter) string {
	orderBy := "created_at"
	validFields := map[string]bool{
		"created_at": true, "actor_id": true, "action_type": true,
		"module": true, "response_status": true, "response_time_ms": true,
	}
	if filter.OrderBy != "" && validFields[filter.OrderBy] {
		orderBy = filter.OrderBy
	}

	if filter.OrderDesc {
		query += fmt.Sprintf(" ORDER BY %s DESC", orderBy)
	} else {
		query += fmt.Sprintf(" ORDER BY %s ASC", orderBy)
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var action string
	var module, method, path sql.NullString
	var requestPayload, beforeState, afterState sql.NullString
	var status sql.NullInt64
	var latency sql.NullInt64
	var ip, userAgent, geoCity, geoCountry sql.NullString

	err := s.Scan(
		&entry.ID,
		&entry.ActorID,
		&entry.ActorEmail,
		&action,
		&entry.Description,
		&module,
		&method,
		&path,
		&requestPayload,
		&status,
		&latency,
		&ip,
		&userAgent,
		&geoCity,
		&geoCountry,
		&beforeState,
		&afterState,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Action = models.ActionType(action)
	entry.Module = module.String
	entry.Method = method.String
	entry.Path = path.String
	entry.Status = int(status.Int64)
	entry.LatencyMS = latency.Int64
	entry.IPAddress = ip.String
	entry.UserAgent = userAgent.String
	entry.GeoCity = geoCity.String
	entry.GeoCountry = geoCountry.String
	entry.RequestPayload = nullStringToRaw(requestPayload)
	entry.BeforeState = nullStringToRaw(beforeState)
	entry.AfterState = nullStringToRaw(afterState)

	return &entry, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nullInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func rawToNullString(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullStringToRaw(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
