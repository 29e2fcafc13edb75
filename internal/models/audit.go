// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ActionType categorizes an audited action.
type ActionType string

const (
	ActionLogin  ActionType = "login"
	ActionLogout ActionType = "logout"
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
	ActionView   ActionType = "view"
	ActionExport ActionType = "export"
)

// ValidActionTypes contains all recognized action types for validation.
var ValidActionTypes = []ActionType{
	ActionLogin, ActionLogout, ActionCreate, ActionUpdate,
	ActionDelete, ActionView, ActionExport,
}

// Valid reports whether the action type is recognized.
func (a ActionType) Valid() bool {
	for _, t := range ValidActionTypes {
		if a == t {
			return true
		}
	}
	return false
}

// ActionForMethod derives the default action type for an HTTP method.
// Routes with richer semantics (login, logout, export) set the type
// explicitly instead.
func ActionForMethod(method string) ActionType {
	switch method {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	default:
		return ActionView
	}
}

// AuditLogEntry is one immutable record of who did what, when, and with
// what effect. Entries are created at request completion and destroyed only
// by the retention purge once older than the retention horizon.
//
// The JSON-valued fields (RequestPayload, BeforeState, AfterState) are
// stored redacted; see internal/audit/sanitize.go. No value whose key
// matched the sensitive-field vocabulary at build time survives into a
// persisted entry, at any nesting depth.
type AuditLogEntry struct {
	// ID is a unique identifier for this entry.
	ID string `json:"id"`

	// ActorID identifies who performed the action.
	ActorID string `json:"actor_id"`

	// ActorEmail is the actor's email at the time of the action.
	ActorEmail string `json:"actor_email"`

	// Action categorizes what was done.
	Action ActionType `json:"action_type"`

	// Description is a human-readable summary of the action.
	Description string `json:"action_description"`

	// Module is the functional area the action touched, derived from the
	// endpoint path. Empty when no module could be derived.
	Module string `json:"module,omitempty"`

	// Method is the HTTP method of the triggering request.
	Method string `json:"http_method,omitempty"`

	// Path is the endpoint path of the triggering request.
	Path string `json:"endpoint_path,omitempty"`

	// RequestPayload is the redacted request body, when one was captured.
	RequestPayload json.RawMessage `json:"request_payload,omitempty"`

	// Status is the HTTP response status code.
	Status int `json:"response_status,omitempty"`

	// LatencyMS is the request handling time in milliseconds.
	LatencyMS int64 `json:"response_time_ms,omitempty"`

	// IPAddress is the client address the request originated from.
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the client's user agent string.
	UserAgent string `json:"user_agent,omitempty"`

	// GeoCity is the city resolved from the IP, empty for private or
	// unresolvable addresses.
	GeoCity string `json:"geo_city,omitempty"`

	// GeoCountry is the country resolved from the IP.
	GeoCountry string `json:"geo_country,omitempty"`

	// BeforeState is the redacted state of the mutated resource before the
	// action, when the handler captured one.
	BeforeState json.RawMessage `json:"before_state,omitempty"`

	// AfterState is the redacted state after the action.
	AfterState json.RawMessage `json:"after_state,omitempty"`

	// CreatedAt is when the entry was built.
	CreatedAt time.Time `json:"created_at"`
}

// Success reports whether the audited request completed successfully,
// derived from the response status range.
func (e *AuditLogEntry) Success() bool {
	return e.Status > 0 && e.Status < 400
}
