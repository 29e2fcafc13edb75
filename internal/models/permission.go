// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

/*
permission.go - Module Permission Models

This file defines the data structures for module-scoped access control.

Key Structures:
  - AccessLevel: ordered permission rank (read < write < admin)
  - Permission: persistent grant of (actor, module, level)

Unlike a coarse role system, access is granted per module. Holding an
"admin" role elsewhere in the organization does not satisfy a module
check; only an explicit Permission row does.

Usage:
  - Storage operations in internal/authz/duckdb_store.go
  - Evaluation in internal/authz/service.go
*/

package models

import "time"

// AccessLevel is an ordered permission rank on a module.
type AccessLevel string

const (
	// LevelRead allows viewing data within a module.
	LevelRead AccessLevel = "read"

	// LevelWrite allows creating and modifying data, and implies read.
	LevelWrite AccessLevel = "write"

	// LevelAdmin allows destructive and administrative operations, and
	// implies write.
	LevelAdmin AccessLevel = "admin"
)

// ValidAccessLevels contains all valid level names for validation.
var ValidAccessLevels = []AccessLevel{LevelRead, LevelWrite, LevelAdmin}

// levelRanks maps each known level to its ordinal rank. A level absent from
// this map has no rank and must never satisfy a check.
var levelRanks = map[AccessLevel]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

// Rank returns the numeric rank of the level and whether the level is
// recognized. Unrecognized levels return (0, false) so comparisons against
// them fail closed.
func (l AccessLevel) Rank() (int, bool) {
	r, ok := levelRanks[l]
	return r, ok
}

// Valid reports whether the level is one of the recognized access levels.
func (l AccessLevel) Valid() bool {
	_, ok := levelRanks[l]
	return ok
}

// Meets reports whether a stored level satisfies a required level.
// Either side being unrecognized yields false: a corrupt or legacy level
// string must deny, never grant.
func (l AccessLevel) Meets(required AccessLevel) bool {
	have, ok := l.Rank()
	if !ok {
		return false
	}
	want, ok := required.Rank()
	if !ok {
		return false
	}
	return have >= want
}

// Permission represents an actor's access grant on a single module.
// Exactly one row exists per (ActorID, Module) pair; granting again
// overwrites the existing row (upsert), never duplicates it.
type Permission struct {
	// ActorID identifies the actor holding the grant.
	ActorID string `json:"actor_id"`

	// Module is the functional area the grant applies to.
	Module string `json:"module"`

	// Level is the granted access level (read, write, admin).
	Level AccessLevel `json:"access_level"`

	// GrantedBy is the actor ID that issued the grant.
	GrantedBy string `json:"granted_by"`

	// GrantedAt is when the grant was issued or last overwritten.
	GrantedAt time.Time `json:"granted_at"`
}
