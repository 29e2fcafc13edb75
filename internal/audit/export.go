// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/models"
)

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat validates a format query parameter, defaulting to
// JSON for an empty value.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Filename returns the attachment filename for the format.
func (f ExportFormat) Filename() string {
	if f == FormatCSV {
		return "audit-log.csv"
	}
	return "audit-log.json"
}

// csvHeader matches the persisted column set; JSON-valued fields are
// embedded as their serialized text.
var csvHeader = []string{
	"id", "actor_id", "actor_email", "action_type", "action_description",
	"module", "http_method", "endpoint_path", "request_payload",
	"response_status", "response_time_ms", "ip_address", "user_agent",
	"geo_city", "geo_country", "before_state", "after_state", "created_at",
}

// Export encodes entries in the requested format. Entries come from
// the store already redacted; no re-sanitization happens here.
func Export(entries []models.AuditLogEntry, format ExportFormat) ([]byte, error) {
	if format == FormatCSV {
		return exportCSV(entries)
	}
	return json.MarshalIndent(entries, "", "  ")
}

func exportCSV(entries []models.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		record := []string{
			e.ID,
			e.ActorID,
			e.ActorEmail,
			string(e.Action),
			e.Description,
			e.Module,
			e.Method,
			e.Path,
			string(e.RequestPayload),
			formatStatus(e.Status),
			strconv.FormatInt(e.LatencyMS, 10),
			e.IPAddress,
			e.UserAgent,
			e.GeoCity,
			e.GeoCountry,
			string(e.BeforeState),
			string(e.AfterState),
			e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatStatus(status int) string {
	if status == 0 {
		return ""
	}
	return strconv.Itoa(status)
}
