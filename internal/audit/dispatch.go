// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"net/http"
	"strings"
)

// IsCritical classifies an action for dispatch. Critical actions are
// written synchronously before the response returns; everything else
// is queued. An action is critical when it is an authentication
// event, any delete, a permission mutation, or an actor create or
// update.
func IsCritical(method, path string) bool {
	if strings.Contains(path, "/auth/") || strings.HasSuffix(path, "/auth") {
		return true
	}
	if method == http.MethodDelete {
		return true
	}

	mutating := method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
	if !mutating {
		return false
	}

	if strings.Contains(path, "/permissions") {
		return true
	}
	if strings.Contains(path, "/users") {
		return true
	}
	return false
}
