// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package models

import (
	"net/http"
	"time"
)

// APIError is the structured error body returned on every non-2xx response.
// Internal failure detail never leaks into Message; storage errors surface
// as a generic message with status 500.
type APIError struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
}

// NewAPIError builds the structured error for a request.
func NewAPIError(r *http.Request, status int, message string) *APIError {
	return &APIError{
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       r.URL.Path,
		Method:     r.Method,
	}
}
