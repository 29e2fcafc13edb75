// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/models"
)

func newTestService() (*Service, *MemoryPermissionStore) {
	store := NewMemoryPermissionStore()
	svc := NewService(store, time.Minute)
	return svc, store
}

func TestHasAccessLevelMatrix(t *testing.T) {
	ctx := context.Background()

	// read ⇒ read only; write ⇒ read+write; admin ⇒ everything.
	tests := []struct {
		granted  models.AccessLevel
		required models.AccessLevel
		want     bool
	}{
		{models.LevelRead, models.LevelRead, true},
		{models.LevelRead, models.LevelWrite, false},
		{models.LevelRead, models.LevelAdmin, false},
		{models.LevelWrite, models.LevelRead, true},
		{models.LevelWrite, models.LevelWrite, true},
		{models.LevelWrite, models.LevelAdmin, false},
		{models.LevelAdmin, models.LevelRead, true},
		{models.LevelAdmin, models.LevelWrite, true},
		{models.LevelAdmin, models.LevelAdmin, true},
	}

	for _, tt := range tests {
		name := string(tt.granted) + "_vs_" + string(tt.required)
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService()
			defer svc.Close()

			if _, err := svc.Grant(ctx, "alice", "finance", tt.granted, "root"); err != nil {
				t.Fatalf("Grant: %v", err)
			}

			got, err := svc.HasAccess(ctx, "alice", "finance", tt.required)
			if err != nil {
				t.Fatalf("HasAccess: %v", err)
			}
			if got != tt.want {
				t.Errorf("granted %s, required %s: got %v, want %v",
					tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestHasAccessNoGrantFailsClosed(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()

	allowed, err := svc.HasAccess(context.Background(), "nobody", "finance", models.LevelRead)
	if err != nil {
		t.Fatalf("HasAccess: %v", err)
	}
	if allowed {
		t.Error("actor without any grant was allowed")
	}
}

func TestHasAccessOtherModuleFailsClosed(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelAdmin, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	allowed, err := svc.HasAccess(ctx, "alice", "users", models.LevelRead)
	if err != nil {
		t.Fatalf("HasAccess: %v", err)
	}
	if allowed {
		t.Error("admin on finance granted access to users")
	}
}

func TestHasAccessUnrecognizedStoredLevelFailsClosed(t *testing.T) {
	svc, store := newTestService()
	defer svc.Close()
	ctx := context.Background()

	// Written directly to storage, bypassing Grant validation, as a
	// legacy or corrupted row would be.
	err := store.Grant(ctx, &models.Permission{
		ActorID: "alice", Module: "finance", Level: "superuser",
		GrantedBy: "root", GrantedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	for _, level := range models.ValidAccessLevels {
		allowed, err := svc.HasAccess(ctx, "alice", "finance", level)
		if err != nil {
			t.Fatalf("HasAccess(%s): %v", level, err)
		}
		if allowed {
			t.Errorf("unrecognized stored level satisfied required %s", level)
		}
	}
}

func TestHasAccessUnrecognizedRequiredLevelFailsClosed(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelAdmin, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	allowed, err := svc.HasAccess(ctx, "alice", "finance", "owner")
	if err != nil {
		t.Fatalf("HasAccess: %v", err)
	}
	if allowed {
		t.Error("unrecognized required level was satisfied")
	}
}

func TestGrantRevokeLifecycle(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelWrite, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := svc.Revoke(ctx, "alice", "finance"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// After revocation every level must deny.
	for _, level := range models.ValidAccessLevels {
		allowed, err := svc.HasAccess(ctx, "alice", "finance", level)
		if err != nil {
			t.Fatalf("HasAccess(%s): %v", level, err)
		}
		if allowed {
			t.Errorf("access at level %s survived revocation", level)
		}
	}
}

func TestGrantTwiceOverwrites(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelRead, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelAdmin, "root"); err != nil {
		t.Fatalf("second Grant: %v", err)
	}

	perms, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("actor holds %d rows for one module, want exactly 1", len(perms))
	}
	if perms[0].Level != models.LevelAdmin {
		t.Errorf("level = %s, want admin (second grant wins)", perms[0].Level)
	}
}

func TestGrantInvalidLevelRejected(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()

	_, err := svc.Grant(context.Background(), "alice", "finance", "superuser", "root")
	if !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Grant(superuser) error = %v, want ErrInvalidLevel", err)
	}
}

func TestRevokeMissingGrant(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()

	err := svc.Revoke(context.Background(), "alice", "finance")
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("Revoke error = %v, want ErrPermissionNotFound", err)
	}
}

func TestRevokeAllForActorCascade(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	for _, module := range []string{"finance", "users", "reports"} {
		if _, err := svc.Grant(ctx, "alice", module, models.LevelRead, "root"); err != nil {
			t.Fatalf("Grant(%s): %v", module, err)
		}
	}
	if _, err := svc.Grant(ctx, "bob", "finance", models.LevelRead, "root"); err != nil {
		t.Fatalf("Grant(bob): %v", err)
	}

	removed, err := svc.RevokeAllForActor(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokeAllForActor: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed %d grants, want 3", removed)
	}

	allowed, _ := svc.HasAccess(ctx, "bob", "finance", models.LevelRead)
	if !allowed {
		t.Error("cascade for alice removed bob's grant")
	}
}

func TestRevocationInvalidatesCachedDecision(t *testing.T) {
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelWrite, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// Prime the cache with an allow.
	if allowed, _ := svc.HasAccess(ctx, "alice", "finance", models.LevelWrite); !allowed {
		t.Fatal("expected access before revocation")
	}

	if err := svc.Revoke(ctx, "alice", "finance"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if allowed, _ := svc.HasAccess(ctx, "alice", "finance", models.LevelWrite); allowed {
		t.Error("cached allow survived revocation")
	}
}

func TestScenarioWriteGrant(t *testing.T) {
	// An actor holding write on finance: a request requiring admin is
	// denied, a request requiring read is allowed.
	svc, _ := newTestService()
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "finance", models.LevelWrite, "root"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if allowed, _ := svc.HasAccess(ctx, "alice", "finance", models.LevelAdmin); allowed {
		t.Error("write grant satisfied an admin requirement")
	}
	if allowed, _ := svc.HasAccess(ctx, "alice", "finance", models.LevelRead); !allowed {
		t.Error("write grant did not satisfy a read requirement")
	}
}
