// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/models"
)

// DuckDBPermissionStore implements PermissionStore using DuckDB. The
// permissions table carries a primary key on (actor_id, module), so
// concurrent grants to the same pair are race-free through the upsert
// without application-level locking.
type DuckDBPermissionStore struct {
	db *sql.DB
}

// NewDuckDBPermissionStore creates a DuckDB-backed permission store.
// The caller is responsible for ensuring the permissions table exists.
func NewDuckDBPermissionStore(db *sql.DB) *DuckDBPermissionStore {
	return &DuckDBPermissionStore{db: db}
}

// Grant inserts or replaces the grant for (actor, module).
func (s *DuckDBPermissionStore) Grant(ctx context.Context, perm *models.Permission) error {
	query := `
		INSERT INTO permissions (actor_id, module, access_level, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (actor_id, module) DO UPDATE SET
			access_level = excluded.access_level,
			granted_by = excluded.granted_by,
			granted_at = excluded.granted_at
	`

	_, err := s.db.ExecContext(ctx, query,
		perm.ActorID, perm.Module, string(perm.Level), perm.GrantedBy, perm.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// Revoke removes the grant for (actor, module).
func (s *DuckDBPermissionStore) Revoke(ctx context.Context, actorID, module string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM permissions WHERE actor_id = ? AND module = ?", actorID, module)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get revoke count: %w", err)
	}
	if affected == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// Get returns the grant for (actor, module).
func (s *DuckDBPermissionStore) Get(ctx context.Context, actorID, module string) (*models.Permission, error) {
	query := `
		SELECT actor_id, module, access_level, granted_by, granted_at
		FROM permissions
		WHERE actor_id = ? AND module = ?
	`

	var perm models.Permission
	var level string
	err := s.db.QueryRowContext(ctx, query, actorID, module).Scan(
		&perm.ActorID, &perm.Module, &level, &perm.GrantedBy, &perm.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	perm.Level = models.AccessLevel(level)
	return &perm, nil
}

// ListByActor returns every grant held by an actor.
func (s *DuckDBPermissionStore) ListByActor(ctx context.Context, actorID string) ([]models.Permission, error) {
	query := `
		SELECT actor_id, module, access_level, granted_by, granted_at
		FROM permissions
		WHERE actor_id = ?
		ORDER BY module
	`

	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		var level string
		if err := rows.Scan(&perm.ActorID, &perm.Module, &level, &perm.GrantedBy, &perm.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.Level = models.AccessLevel(level)
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}

// ListByModule returns every grant on a module, the view used when
// reviewing who can touch a functional area.
func (s *DuckDBPermissionStore) ListByModule(ctx context.Context, module string) ([]models.Permission, error) {
	query := `
		SELECT actor_id, module, access_level, granted_by, granted_at
		FROM permissions
		WHERE module = ?
		ORDER BY actor_id
	`

	rows, err := s.db.QueryContext(ctx, query, module)
	if err != nil {
		return nil, fmt.Errorf("failed to list module permissions: %w", err)
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		var level string
		if err := rows.Scan(&perm.ActorID, &perm.Module, &level, &perm.GrantedBy, &perm.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.Level = models.AccessLevel(level)
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}

// RevokeAllForActor removes every grant held by an actor.
func (s *DuckDBPermissionStore) RevokeAllForActor(ctx context.Context, actorID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM permissions WHERE actor_id = ?", actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke actor permissions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get revoke count: %w", err)
	}
	return affected, nil
}
