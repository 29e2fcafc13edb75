// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"reflect"
	"strings"

	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/logging"
)

const (
	// RedactionMarker replaces values of sensitive fields.
	RedactionMarker = "[REDACTED]"

	// CircularMarker replaces references already seen on the current
	// traversal path, so serialization cannot recurse forever.
	CircularMarker = "[CIRCULAR]"
)

// sensitiveFields is the fixed vocabulary matched against normalized
// map keys. Matching is substring-based, so "user_password" and
// "apiToken" both redact.
var sensitiveFields = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"credential",
	"authorization",
	"accesstoken",
	"refreshtoken",
	"privatekey",
}

// keyNormalizer strips the separators that vary between naming
// conventions before vocabulary matching.
var keyNormalizer = strings.NewReplacer("_", "", "-", "", " ", "", ".", "")

// isSensitiveKey reports whether a map key names a sensitive field.
func isSensitiveKey(key string) bool {
	normalized := keyNormalizer.Replace(strings.ToLower(key))
	if normalized == "" {
		return false
	}
	for _, field := range sensitiveFields {
		if strings.Contains(normalized, field) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of value with sensitive map values replaced
// by RedactionMarker and circular references replaced by
// CircularMarker. It never panics: on any internal failure the
// original value is returned unchanged and the failure is logged,
// because audit capture must not affect the primary request.
func Sanitize(value interface{}) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn().Interface("panic", r).Msg("Sanitizer failed, returning unredacted value")
			result = value
		}
	}()

	return sanitizeValue(reflect.ValueOf(value), make(map[uintptr]struct{}))
}

// SanitizeJSON decodes raw JSON, sanitizes it, and re-encodes it.
// Invalid or empty input passes through untouched.
func SanitizeJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logging.Debug().Err(err).Msg("Sanitizer received non-JSON payload, passing through")
		return raw
	}

	sanitized, err := json.Marshal(Sanitize(decoded))
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to re-encode sanitized payload")
		return raw
	}
	return sanitized
}

// sanitizeValue walks an arbitrary value. The visited set tracks
// container identities along the current path only; entries are
// removed on the way back up so shared (non-cyclic) references are
// still traversed.
func sanitizeValue(v reflect.Value, visited map[uintptr]struct{}) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Ptr {
			ptr := v.Pointer()
			if _, seen := visited[ptr]; seen {
				return CircularMarker
			}
			visited[ptr] = struct{}{}
			defer delete(visited, ptr)
		}
		return sanitizeValue(v.Elem(), visited)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if _, seen := visited[ptr]; seen {
			return CircularMarker
		}
		visited[ptr] = struct{}{}
		defer delete(visited, ptr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := mapKeyString(iter.Key())
			if isSensitiveKey(key) {
				out[key] = RedactionMarker
				continue
			}
			out[key] = sanitizeValue(iter.Value(), visited)
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if _, seen := visited[ptr]; seen {
			return CircularMarker
		}
		visited[ptr] = struct{}{}
		defer delete(visited, ptr)
		return sanitizeSequence(v, visited)

	case reflect.Array:
		return sanitizeSequence(v, visited)

	default:
		return v.Interface()
	}
}

func sanitizeSequence(v reflect.Value, visited map[uintptr]struct{}) []interface{} {
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = sanitizeValue(v.Index(i), visited)
	}
	return out
}

// mapKeyString renders a map key for the sanitized output. JSON maps
// always have string keys; anything else is formatted via reflection.
func mapKeyString(key reflect.Value) string {
	if key.Kind() == reflect.Interface {
		key = key.Elem()
	}
	if key.Kind() == reflect.String {
		return key.String()
	}
	data, err := json.Marshal(key.Interface())
	if err != nil {
		return "?"
	}
	return strings.Trim(string(data), `"`)
}
