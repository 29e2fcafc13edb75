// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package api provides the HTTP surface: permission management, audit
// log query and export, and health endpoints, routed with chi and
// gated by the authentication and authorization middleware.
package api
