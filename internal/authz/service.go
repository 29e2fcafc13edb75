// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

// ErrInvalidLevel is returned by Grant for a level outside the
// recognized scale.
var ErrInvalidLevel = errors.New("invalid access level")

// Service evaluates and mutates module-scoped permissions. Decisions
// fail closed: a missing grant, an unrecognized stored level, or an
// unrecognized required level all deny.
type Service struct {
	store PermissionStore
	cache *decisionCache
}

// NewService creates a Service. cacheTTL bounds decision staleness;
// zero selects the default.
func NewService(store PermissionStore, cacheTTL time.Duration) *Service {
	return &Service{
		store: store,
		cache: newDecisionCache(cacheTTL),
	}
}

// HasAccess reports whether actorID holds at least required on
// module. A missing grant denies without error; only storage failures
// surface as errors.
func (s *Service) HasAccess(ctx context.Context, actorID, module string, required models.AccessLevel) (bool, error) {
	start := time.Now()

	if allowed, ok := s.cache.get(actorID, module, string(required)); ok {
		CacheHitsTotal.Inc()
		DecisionDuration.WithLabelValues("true").Observe(time.Since(start).Seconds())
		recordDecision(module, required, allowed)
		return allowed, nil
	}
	CacheMissesTotal.Inc()

	allowed, err := s.evaluate(ctx, actorID, module, required)
	if err != nil {
		return false, err
	}

	s.cache.set(actorID, module, string(required), allowed)
	DecisionDuration.WithLabelValues("false").Observe(time.Since(start).Seconds())
	recordDecision(module, required, allowed)
	return allowed, nil
}

func (s *Service) evaluate(ctx context.Context, actorID, module string, required models.AccessLevel) (bool, error) {
	perm, err := s.store.Get(ctx, actorID, module)
	if errors.Is(err, ErrPermissionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("permission lookup: %w", err)
	}

	if !perm.Level.Valid() {
		// A grant written before a level was removed from the scale,
		// or corrupted data. Deny and flag it.
		logging.Warn().
			Str("actor_id", actorID).
			Str("module", module).
			Str("level", string(perm.Level)).
			Msg("Unrecognized stored access level, denying")
		return false, nil
	}

	return perm.Level.Meets(required), nil
}

// Grant inserts or replaces the grant for (actor, module). Granting
// twice leaves exactly one row.
func (s *Service) Grant(ctx context.Context, actorID, module string, level models.AccessLevel, grantedBy string) (*models.Permission, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	perm := &models.Permission{
		ActorID:   actorID,
		Module:    module,
		Level:     level,
		GrantedBy: grantedBy,
		GrantedAt: time.Now().UTC(),
	}
	if err := s.store.Grant(ctx, perm); err != nil {
		return nil, err
	}

	s.cache.invalidateActor(actorID)
	GrantsTotal.WithLabelValues(module, string(level)).Inc()
	logging.Info().
		Str("actor_id", actorID).
		Str("module", module).
		Str("level", string(level)).
		Str("granted_by", grantedBy).
		Msg("Permission granted")
	return perm, nil
}

// Revoke removes the grant for (actor, module). Returns
// ErrPermissionNotFound when no grant exists.
func (s *Service) Revoke(ctx context.Context, actorID, module string) error {
	if err := s.store.Revoke(ctx, actorID, module); err != nil {
		return err
	}

	s.cache.invalidateActor(actorID)
	RevocationsTotal.WithLabelValues(module).Inc()
	logging.Info().
		Str("actor_id", actorID).
		Str("module", module).
		Msg("Permission revoked")
	return nil
}

// List returns every grant held by an actor.
func (s *Service) List(ctx context.Context, actorID string) ([]models.Permission, error) {
	return s.store.ListByActor(ctx, actorID)
}

// ListModule returns every grant on a module.
func (s *Service) ListModule(ctx context.Context, module string) ([]models.Permission, error) {
	return s.store.ListByModule(ctx, module)
}

// RevokeAllForActor removes every grant held by an actor, the cascade
// for actor deletion.
func (s *Service) RevokeAllForActor(ctx context.Context, actorID string) (int64, error) {
	removed, err := s.store.RevokeAllForActor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	s.cache.invalidateActor(actorID)
	return removed, nil
}

// Close stops the cache janitor.
func (s *Service) Close() {
	s.cache.stop()
}

func recordDecision(module string, required models.AccessLevel, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	DecisionsTotal.WithLabelValues(module, string(required), decision).Inc()
}
