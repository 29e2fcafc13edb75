// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package auth consumes the verified actor identity supplied by the
// external identity layer. Credential verification itself (passwords,
// OAuth flows, session management) happens upstream; this package only
// decodes the signed actor assertion the gateway attaches to each request
// and makes the resulting Actor available on the request context.
package auth

import (
	"context"
	"errors"
)

// Standard authentication errors.
var (
	// ErrNoActorToken indicates the request carried no identity assertion.
	ErrNoActorToken = errors.New("no actor token provided")

	// ErrInvalidActorToken indicates the assertion failed signature or
	// claim validation.
	ErrInvalidActorToken = errors.New("invalid actor token")

	// ErrExpiredActorToken indicates the assertion has expired.
	ErrExpiredActorToken = errors.New("actor token expired")
)

// Actor is the authenticated identity behind a request, as asserted by the
// upstream identity layer. Role is the actor's coarse baseline role; it is
// recorded for audit context but is never sufficient to pass a module
// check (see internal/authz).
type Actor struct {
	// ID is the unique identifier for this actor.
	ID string `json:"id"`

	// Email is the actor's email address.
	Email string `json:"email"`

	// Role is the coarse organizational role (e.g. "staff", "admin").
	Role string `json:"role"`
}

// contextKey is an unexported type to avoid context key collisions.
type contextKey string

// ActorContextKey is the context key under which the Actor is stored.
const ActorContextKey contextKey = "actor"

// ContextWithActor returns a context carrying the actor.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// ActorFromContext retrieves the actor from the context.
// Returns nil when the request was not authenticated.
func ActorFromContext(ctx context.Context) *Actor {
	if actor, ok := ctx.Value(ActorContextKey).(*Actor); ok {
		return actor
	}
	return nil
}
