// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ActorSource extracts the verified actor identity from a request.
// Implementations decide which transport the identity layer uses
// (signed header token, mTLS metadata, test stub).
type ActorSource interface {
	// ActorFromRequest returns the actor behind the request, or one of the
	// package sentinel errors when no trustworthy identity is attached.
	ActorFromRequest(r *http.Request) (*Actor, error)
}

// IdentityTokenHeader is the header the gateway uses to attach the signed
// actor assertion. A standard Authorization bearer token is accepted as a
// fallback for direct API clients.
const IdentityTokenHeader = "X-Identity-Token"

// actorClaims are the registered and private claims of the identity
// layer's actor assertion.
type actorClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSource implements ActorSource for HMAC-signed identity assertions.
// The shared secret establishes trust between the gateway (which verified
// the user's credentials) and this service; no user credential is ever
// checked here.
type TokenSource struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewTokenSource creates an ActorSource validating assertions signed with
// the given shared secret. When issuer is non-empty, the token's iss claim
// must match.
func NewTokenSource(secret []byte, issuer string) *TokenSource {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenSource{
		secret: secret,
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// ActorFromRequest extracts and validates the actor assertion.
func (s *TokenSource) ActorFromRequest(r *http.Request) (*Actor, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return nil, ErrNoActorToken
	}

	claims := &actorClaims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredActorToken
		}
		return nil, ErrInvalidActorToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidActorToken
	}

	return &Actor{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// tokenFromRequest pulls the raw assertion from the identity header or, as
// a fallback, a bearer Authorization header.
func tokenFromRequest(r *http.Request) string {
	if v := r.Header.Get(IdentityTokenHeader); v != "" {
		return v
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

// StaticSource is an ActorSource returning a fixed actor. Used in tests
// and in trusted single-tenant deployments where the proxy strips all
// inbound identity headers.
type StaticSource struct {
	Actor *Actor
}

// ActorFromRequest returns the configured actor, or ErrNoActorToken when
// none is set.
func (s *StaticSource) ActorFromRequest(_ *http.Request) (*Actor, error) {
	if s.Actor == nil {
		return nil, ErrNoActorToken
	}
	return s.Actor, nil
}
