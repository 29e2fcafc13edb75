// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/audit"
	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// Middleware gates routes on a declared (module, level) and records
// an audit entry for every request that carries an actor. The request
// lifecycle is: Unauthenticated -> Authenticated -> Authorized ->
// Handled -> AuditRecorded. A missing actor stops at 401 with no
// audit; an insufficient grant stops at 403 with an audit entry for
// the failed attempt; an authorized request is handled and then
// audited whatever the handler's outcome.
type Middleware struct {
	service    *Service
	recorder   *audit.Recorder
	maxPayload int
}

// NewMiddleware creates authorization middleware. maxPayloadBytes
// bounds how much of a request body is captured for audit.
func NewMiddleware(service *Service, recorder *audit.Recorder, maxPayloadBytes int) *Middleware {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = 64 * 1024
	}
	return &Middleware{
		service:    service,
		recorder:   recorder,
		maxPayload: maxPayloadBytes,
	}
}

// RequireModule returns middleware enforcing at least level on module.
func (m *Middleware) RequireModule(module string, level models.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := auth.ActorFromContext(r.Context())
			if actor == nil {
				// The authentication middleware should have rejected
				// this already; reject again rather than evaluate an
				// anonymous request.
				writeError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			payload := m.capturePayload(r)

			allowed, err := m.service.HasAccess(r.Context(), actor.ID, module, level)
			if err != nil {
				logging.Error().Err(err).
					Str("actor_id", actor.ID).
					Str("module", module).
					Msg("Access evaluation failed")
				writeError(w, r, http.StatusInternalServerError, "Internal server error")
				m.recordOutcome(r, actor, payload, http.StatusInternalServerError, 0, nil,
					"access evaluation failed for module "+module)
				return
			}

			if !allowed {
				DeniedTotal.WithLabelValues(module, string(level)).Inc()
				logging.Info().
					Str("actor_id", actor.ID).
					Str("module", module).
					Str("level", string(level)).
					Str("path", r.URL.Path).
					Msg("Access denied")
				writeError(w, r, http.StatusForbidden, "Insufficient permissions")
				m.recordOutcome(r, actor, payload, http.StatusForbidden, 0, nil,
					"access denied: module "+module+" requires "+string(level))
				return
			}

			capture := &audit.StateCapture{}
			ctx := audit.ContextWithStateCapture(r.Context(), capture)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.recordOutcome(r, actor, payload, status, time.Since(start), capture, "")
		})
	}
}

// recordOutcome dispatches the audit entry for a completed (or
// refused) request. It never fails the request.
func (m *Middleware) recordOutcome(r *http.Request, actor *auth.Actor, payload json.RawMessage,
	status int, latency time.Duration, capture *audit.StateCapture, description string) {

	before, after := capture.States()
	m.recorder.Record(r.Context(), audit.Request{
		Actor:       actor,
		Description: description,
		Method:      r.Method,
		Path:        r.URL.Path,
		Payload:     payload,
		Status:      status,
		Latency:     latency,
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
		BeforeState: before,
		AfterState:  after,
	})
}

// capturePayload reads up to maxPayload bytes of the request body for
// the audit entry and restores the body for the handler. Bodies
// beyond the bound are passed through uncaptured rather than
// truncated into invalid JSON.
func (m *Middleware) capturePayload(r *http.Request) json.RawMessage {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	limited := io.LimitReader(r.Body, int64(m.maxPayload)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(data))
		return nil
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), r.Body))

	if len(data) > m.maxPayload {
		return nil
	}
	return data
}

// clientIP extracts the client address. The router installs RealIP
// upstream, so RemoteAddr already reflects forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError responds with the structured error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do if the client is gone
	json.NewEncoder(w).Encode(models.NewAPIError(r, status, message))
}
