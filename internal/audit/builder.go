// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/geo"
	"github.com/arbiterhq/arbiter/internal/models"
)

// UnknownModule is the bucket for paths no prefix rule matches. A
// fixed bucket keeps module label cardinality bounded in groupings
// and metrics.
const UnknownModule = "unknown"

// modulePrefixes maps API path prefixes to module names. First match
// wins; longer prefixes are listed before their shorter siblings.
var modulePrefixes = []struct {
	prefix string
	module string
}{
	{"/api/v1/auth", "auth"},
	{"/api/v1/permissions", "permissions"},
	{"/api/v1/audit", "audit"},
	{"/api/v1/users", "users"},
	{"/api/v1/finance", "finance"},
	{"/api/v1/analytics", "analytics"},
	{"/api/v1/reports", "reports"},
	{"/api/v1/settings", "settings"},
	{"/healthz", "system"},
	{"/metrics", "system"},
}

// ModuleForPath derives the module name for an endpoint path. Paths
// matching no prefix fall into the UnknownModule bucket.
func ModuleForPath(path string) string {
	for _, m := range modulePrefixes {
		if strings.HasPrefix(path, m.prefix) {
			return m.module
		}
	}
	return UnknownModule
}

// Request carries the per-request context an entry is built from. The
// middleware fills it in at request completion.
type Request struct {
	Actor       *auth.Actor
	Action      models.ActionType
	Description string
	Method      string
	Path        string
	Payload     json.RawMessage
	Status      int
	Latency     time.Duration
	IPAddress   string
	UserAgent   string
	BeforeState json.RawMessage
	AfterState  json.RawMessage
}

// Builder assembles normalized audit entries, deriving the module
// from the path, enriching with geolocation, and redacting every
// JSON-valued field.
type Builder struct {
	resolver   geo.Resolver
	maxPayload int
}

// NewBuilder creates a Builder. maxPayload bounds the stored size of
// each JSON field; zero or negative disables the bound.
func NewBuilder(resolver geo.Resolver, maxPayload int) *Builder {
	if resolver == nil {
		resolver = geo.NoopResolver{}
	}
	return &Builder{resolver: resolver, maxPayload: maxPayload}
}

// Build assembles an AuditLogEntry from req. The action type defaults
// from the HTTP method when unset, and the description defaults to
// "<method> <path>".
func (b *Builder) Build(req Request) *models.AuditLogEntry {
	action := req.Action
	if action == "" {
		action = models.ActionForMethod(req.Method)
	}

	description := req.Description
	if description == "" {
		description = req.Method + " " + req.Path
	}

	entry := &models.AuditLogEntry{
		ID:             uuid.NewString(),
		Action:         action,
		Description:    description,
		Module:         ModuleForPath(req.Path),
		Method:         req.Method,
		Path:           req.Path,
		RequestPayload: b.sanitizeField(req.Payload),
		Status:         req.Status,
		LatencyMS:      req.Latency.Milliseconds(),
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		BeforeState:    b.sanitizeField(req.BeforeState),
		AfterState:     b.sanitizeField(req.AfterState),
		CreatedAt:      time.Now().UTC(),
	}

	if req.Actor != nil {
		entry.ActorID = req.Actor.ID
		entry.ActorEmail = req.Actor.Email
	}

	if req.IPAddress != "" {
		loc := b.resolver.Resolve(req.IPAddress)
		entry.GeoCity = loc.City
		entry.GeoCountry = loc.Country
	}

	return entry
}

// sanitizeField redacts a JSON field and enforces the payload bound.
// Oversized fields are replaced with a size note rather than
// truncated mid-document, which would corrupt the JSON.
func (b *Builder) sanitizeField(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if b.maxPayload > 0 && len(raw) > b.maxPayload {
		note, _ := json.Marshal(map[string]interface{}{
			"_omitted":    "payload exceeds capture limit",
			"_size_bytes": len(raw),
		})
		return note
	}
	return SanitizeJSON(raw)
}
