// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
)

// StateCapture lets a handler attach before/after resource snapshots
// to the audit entry for its request. The middleware stashes one in
// the request context; mutation handlers fill it in.
type StateCapture struct {
	mu     sync.Mutex
	before json.RawMessage
	after  json.RawMessage
}

type stateCaptureKey struct{}

// ContextWithStateCapture returns a context carrying sc.
func ContextWithStateCapture(ctx context.Context, sc *StateCapture) context.Context {
	return context.WithValue(ctx, stateCaptureKey{}, sc)
}

// StateCaptureFromContext returns the capture stashed by the
// middleware, or nil outside an audited request.
func StateCaptureFromContext(ctx context.Context) *StateCapture {
	sc, _ := ctx.Value(stateCaptureKey{}).(*StateCapture)
	return sc
}

// SetBefore records the resource state before the mutation. v is
// serialized immediately; serialization failures are ignored and
// leave the state unset.
func (sc *StateCapture) SetBefore(v interface{}) {
	sc.set(&sc.before, v)
}

// SetAfter records the resource state after the mutation.
func (sc *StateCapture) SetAfter(v interface{}) {
	sc.set(&sc.after, v)
}

func (sc *StateCapture) set(target *json.RawMessage, v interface{}) {
	if sc == nil || v == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	sc.mu.Lock()
	*target = data
	sc.mu.Unlock()
}

// States returns the captured snapshots.
func (sc *StateCapture) States() (before, after json.RawMessage) {
	if sc == nil {
		return nil, nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.before, sc.after
}

// SetBeforeState is a handler convenience for the common case.
func SetBeforeState(ctx context.Context, v interface{}) {
	StateCaptureFromContext(ctx).SetBefore(v)
}

// SetAfterState is a handler convenience for the common case.
func SetAfterState(ctx context.Context, v interface{}) {
	StateCaptureFromContext(ctx).SetAfter(v)
}
