// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package audit implements the activity-audit pipeline: building
// normalized audit entries from request context, redacting sensitive
// payload fields, dispatching each entry over either a blocking or a
// queued write path, and enforcing the retention horizon.
//
// Critical actions (authentication, deletes, permission and actor
// mutations) are written synchronously before the response returns.
// Everything else goes through a bounded in-memory queue drained in
// batches on a fixed tick. Audit failures never propagate to the
// request that triggered them.
package audit
