// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package authz implements module-scoped access control: persisted
// grants of (actor, module, level), a fail-closed evaluator over the
// ordered level scale, and HTTP middleware that gates routes on a
// declared module and level.
//
// There is no wildcard and no role-based override. An actor without
// an explicit grant on a module has no access to it, whatever their
// baseline role says.
package authz
