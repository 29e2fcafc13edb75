// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"context"
	"errors"
	"sync"

	"github.com/arbiterhq/arbiter/internal/models"
)

// ErrPermissionNotFound is returned when no grant exists for an
// (actor, module) pair.
var ErrPermissionNotFound = errors.New("permission not found")

// PermissionStore persists grants. Grant has upsert semantics:
// granting an existing (actor, module) pair replaces the row, never
// duplicates it.
type PermissionStore interface {
	Grant(ctx context.Context, perm *models.Permission) error
	Revoke(ctx context.Context, actorID, module string) error
	Get(ctx context.Context, actorID, module string) (*models.Permission, error)
	ListByActor(ctx context.Context, actorID string) ([]models.Permission, error)
	ListByModule(ctx context.Context, module string) ([]models.Permission, error)
	RevokeAllForActor(ctx context.Context, actorID string) (int64, error)
}

// MemoryPermissionStore implements PermissionStore in memory, for
// development and tests.
type MemoryPermissionStore struct {
	mu    sync.RWMutex
	perms map[string]models.Permission
}

// NewMemoryPermissionStore creates an empty in-memory store.
func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{perms: make(map[string]models.Permission)}
}

func permKey(actorID, module string) string {
	return actorID + "\x00" + module
}

// Grant inserts or replaces the grant for (actor, module).
func (s *MemoryPermissionStore) Grant(ctx context.Context, perm *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[permKey(perm.ActorID, perm.Module)] = *perm
	return nil
}

// Revoke removes the grant for (actor, module).
func (s *MemoryPermissionStore) Revoke(ctx context.Context, actorID, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := permKey(actorID, module)
	if _, ok := s.perms[key]; !ok {
		return ErrPermissionNotFound
	}
	delete(s.perms, key)
	return nil
}

// Get returns the grant for (actor, module).
func (s *MemoryPermissionStore) Get(ctx context.Context, actorID, module string) (*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perm, ok := s.perms[permKey(actorID, module)]
	if !ok {
		return nil, ErrPermissionNotFound
	}
	return &perm, nil
}

// ListByActor returns every grant held by an actor.
func (s *MemoryPermissionStore) ListByActor(ctx context.Context, actorID string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var perms []models.Permission
	for _, p := range s.perms {
		if p.ActorID == actorID {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// ListByModule returns every grant on a module.
func (s *MemoryPermissionStore) ListByModule(ctx context.Context, module string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var perms []models.Permission
	for _, p := range s.perms {
		if p.Module == module {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// RevokeAllForActor removes every grant held by an actor, used when
// the actor record itself is deleted.
func (s *MemoryPermissionStore) RevokeAllForActor(ctx context.Context, actorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, p := range s.perms {
		if p.ActorID == actorID {
			delete(s.perms, key)
			removed++
		}
	}
	return removed, nil
}
