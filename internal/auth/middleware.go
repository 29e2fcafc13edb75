// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package auth

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// Middleware attaches the verified actor to the request context.
type Middleware struct {
	source ActorSource
}

// NewMiddleware creates authentication middleware backed by the given
// actor source.
func NewMiddleware(source ActorSource) *Middleware {
	return &Middleware{source: source}
}

// Authenticate resolves the actor for the request. Requests without a
// valid actor are rejected with 401 and never reach downstream handlers.
// No audit entry is written for them: there is no actor to attribute.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.source.ActorFromRequest(r)
		if err != nil {
			logging.Debug().
				Err(err).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("Request rejected: no verified actor")
			writeAuthError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// writeAuthError responds with the structured 401 error body.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "Authentication required"
	if err == ErrExpiredActorToken {
		msg = "Credentials expired"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // nothing to do if the client is gone
	json.NewEncoder(w).Encode(models.NewAPIError(r, http.StatusUnauthorized, msg))
}
