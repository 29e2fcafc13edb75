// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/audit"
	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/authz"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/models"
)

// apiFixture wires a full router over in-memory stores.
type apiFixture struct {
	handler    http.Handler
	permStore  *authz.MemoryPermissionStore
	auditStore *audit.MemoryStore
	service    *authz.Service
}

// newAPIFixture builds the route tree with the given actor asserted on
// every request. actor == nil simulates an unauthenticated caller.
func newAPIFixture(t *testing.T, actor *auth.Actor) *apiFixture {
	t.Helper()

	permStore := authz.NewMemoryPermissionStore()
	service := authz.NewService(permStore, time.Minute)
	t.Cleanup(service.Close)

	auditStore := audit.NewMemoryStore(0)
	builder := audit.NewBuilder(nil, 0)
	writer := audit.NewWriter(auditStore, nil)
	queue := audit.NewQueue(auditStore, audit.DefaultQueueConfig())
	recorder := audit.NewRecorder(builder, writer, queue)

	cfg := config.ServerConfig{} // no CORS, no rate limiting
	router := NewRouter(
		cfg,
		auth.NewMiddleware(&auth.StaticSource{Actor: actor}),
		authz.NewMiddleware(service, recorder, 0),
		NewPermissionHandlers(service),
		NewAuditHandlers(auditStore),
		NewHealthHandlers(nil),
	)

	return &apiFixture{
		handler:    router.Handler(),
		permStore:  permStore,
		auditStore: auditStore,
		service:    service,
	}
}

// grant seeds a permission directly, bypassing the HTTP surface.
func (f *apiFixture) grant(t *testing.T, actorID, module string, level models.AccessLevel) {
	t.Helper()
	if _, err := f.service.Grant(context.Background(), actorID, module, level, "seed"); err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}
}

func (f *apiFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var apiErr models.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("response is not a structured error: %v (body %q)", err, rec.Body.String())
	}
	return apiErr
}

func TestUnauthenticatedRequestsGet401(t *testing.T) {
	f := newAPIFixture(t, nil)

	for _, target := range []string{
		"/api/v1/audit",
		"/api/v1/permissions/actor-1",
	} {
		rec := f.do("GET", target, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", target, rec.Code)
		}
		apiErr := decodeAPIError(t, rec)
		if apiErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s body statusCode = %d, want 401", target, apiErr.StatusCode)
		}
	}

	// Rejected before authorization, so nothing was audited.
	total, err := f.auditStore.Count(context.Background(), audit.DefaultQueryFilter())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 0 {
		t.Errorf("audit entries after 401s = %d, want 0", total)
	}
}

func TestHealthAndMetricsSkipAuthentication(t *testing.T) {
	f := newAPIFixture(t, nil)

	if rec := f.do("GET", "/healthz/live", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz/live status = %d, want 200", rec.Code)
	}
	if rec := f.do("GET", "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", rec.Code)
	}
}

func TestPermissionLifecycleOverHTTP(t *testing.T) {
	admin := &auth.Actor{ID: "admin-1", Email: "admin@example.com", Role: "admin"}
	f := newAPIFixture(t, admin)
	f.grant(t, admin.ID, "permissions", models.LevelAdmin)

	// Grant bob write on finance.
	rec := f.do("POST", "/api/v1/permissions", `{"actor_id":"bob","module":"finance","access_level":"write"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var perm models.Permission
	if err := json.Unmarshal(rec.Body.Bytes(), &perm); err != nil {
		t.Fatalf("grant response decode: %v", err)
	}
	if perm.ActorID != "bob" || perm.Module != "finance" || perm.Level != models.LevelWrite {
		t.Errorf("granted permission = %+v", perm)
	}
	if perm.GrantedBy != "admin-1" {
		t.Errorf("GrantedBy = %q, want admin-1", perm.GrantedBy)
	}

	// Regranting the same pair overwrites rather than duplicates.
	rec = f.do("POST", "/api/v1/permissions", `{"actor_id":"bob","module":"finance","access_level":"read"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("regrant status = %d, want 201", rec.Code)
	}

	rec = f.do("GET", "/api/v1/permissions/bob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listResp struct {
		ActorID     string              `json:"actor_id"`
		Permissions []models.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("list response decode: %v", err)
	}
	if len(listResp.Permissions) != 1 {
		t.Fatalf("permissions after regrant = %d, want 1", len(listResp.Permissions))
	}
	if listResp.Permissions[0].Level != models.LevelRead {
		t.Errorf("level after regrant = %q, want read", listResp.Permissions[0].Level)
	}

	// Revoke and verify 404 on the second attempt.
	if rec := f.do("DELETE", "/api/v1/permissions/bob/finance", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d, want 204", rec.Code)
	}
	if rec := f.do("DELETE", "/api/v1/permissions/bob/finance", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second revoke status = %d, want 404", rec.Code)
	}
}

func TestRevokeAllOverHTTP(t *testing.T) {
	admin := &auth.Actor{ID: "admin-1"}
	f := newAPIFixture(t, admin)
	f.grant(t, admin.ID, "permissions", models.LevelAdmin)
	f.grant(t, "bob", "finance", models.LevelRead)
	f.grant(t, "bob", "reports", models.LevelWrite)

	rec := f.do("DELETE", "/api/v1/permissions/bob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke all status = %d, want 200", rec.Code)
	}
	var resp struct {
		ActorID string `json:"actor_id"`
		Revoked int    `json:"revoked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.Revoked != 2 {
		t.Errorf("revoked = %d, want 2", resp.Revoked)
	}
}

func TestListModuleOverHTTP(t *testing.T) {
	actor := &auth.Actor{ID: "reviewer-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "permissions", models.LevelRead)
	f.grant(t, "alice", "finance", models.LevelAdmin)
	f.grant(t, "bob", "finance", models.LevelRead)
	f.grant(t, "bob", "reports", models.LevelWrite)

	rec := f.do("GET", "/api/v1/permissions/module/finance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Module      string              `json:"module"`
		Permissions []models.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.Module != "finance" || len(resp.Permissions) != 2 {
		t.Errorf("module=%q permissions=%d, want finance with 2 grants", resp.Module, len(resp.Permissions))
	}

	rec = f.do("GET", "/api/v1/permissions/module/empty-module", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if len(resp.Permissions) != 0 {
		t.Errorf("permissions = %d, want 0", len(resp.Permissions))
	}
}

func TestGrantValidation(t *testing.T) {
	admin := &auth.Actor{ID: "admin-1"}
	f := newAPIFixture(t, admin)
	f.grant(t, admin.ID, "permissions", models.LevelAdmin)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"actor_id": `},
		{"missing actor_id", `{"module":"finance","access_level":"read"}`},
		{"missing module", `{"actor_id":"bob","access_level":"read"}`},
		{"unknown level", `{"actor_id":"bob","module":"finance","access_level":"superuser"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do("POST", "/api/v1/permissions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPermissionMutationNeedsAdminOnPermissions(t *testing.T) {
	// Write on permissions is not enough for mutations.
	actor := &auth.Actor{ID: "staff-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "permissions", models.LevelWrite)

	rec := f.do("POST", "/api/v1/permissions", `{"actor_id":"bob","module":"finance","access_level":"read"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("grant status = %d, want 403", rec.Code)
	}

	// Read access still covers listing.
	if rec := f.do("GET", "/api/v1/permissions/bob", ""); rec.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", rec.Code)
	}
}

func TestAuditSurfaceRequiresAuditRead(t *testing.T) {
	actor := &auth.Actor{ID: "staff-1"}
	f := newAPIFixture(t, actor)
	// Actor has grants, just not on the audit module.
	f.grant(t, actor.ID, "finance", models.LevelAdmin)

	for _, target := range []string{
		"/api/v1/audit",
		"/api/v1/audit/stats",
		"/api/v1/audit/export",
		"/api/v1/audit/some-id",
	} {
		rec := f.do("GET", target, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s status = %d, want 403", target, rec.Code)
		}
	}
}

func seedAuditEntries(t *testing.T, store *audit.MemoryStore) {
	t.Helper()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.AuditLogEntry{
		{ID: "e-1", ActorID: "alice", Action: models.ActionLogin, Module: "auth", Status: 200, CreatedAt: base},
		{ID: "e-2", ActorID: "alice", Action: models.ActionCreate, Module: "finance", Status: 201, CreatedAt: base.Add(time.Minute)},
		{ID: "e-3", ActorID: "bob", Action: models.ActionView, Module: "finance", Status: 403, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		if err := store.Save(context.Background(), &entries[i]); err != nil {
			t.Fatalf("failed to seed entry: %v", err)
		}
	}
}

func TestAuditListOverHTTP(t *testing.T) {
	actor := &auth.Actor{ID: "auditor-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "audit", models.LevelRead)
	seedAuditEntries(t, f.auditStore)

	rec := f.do("GET", "/api/v1/audit?actor_id=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entries []models.AuditLogEntry `json:"entries"`
		Total   int                    `json:"total"`
		Limit   int                    `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if len(resp.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(resp.Entries))
	}

	// Unknown action types are rejected, not ignored.
	if rec := f.do("GET", "/api/v1/audit?action_type=browse", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad action_type status = %d, want 400", rec.Code)
	}
	if rec := f.do("GET", "/api/v1/audit?start_time=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad start_time status = %d, want 400", rec.Code)
	}
}

func TestAuditGetOverHTTP(t *testing.T) {
	actor := &auth.Actor{ID: "auditor-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "audit", models.LevelRead)
	seedAuditEntries(t, f.auditStore)

	rec := f.do("GET", "/api/v1/audit/e-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var entry models.AuditLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if entry.ID != "e-1" || entry.Action != models.ActionLogin {
		t.Errorf("entry = %+v", entry)
	}

	if rec := f.do("GET", "/api/v1/audit/no-such-id", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing entry status = %d, want 404", rec.Code)
	}
}

func TestAuditExportOverHTTP(t *testing.T) {
	actor := &auth.Actor{ID: "auditor-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "audit", models.LevelRead)
	seedAuditEntries(t, f.auditStore)

	rec := f.do("GET", "/api/v1/audit/export?format=csv&actor_id=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit-log.csv") {
		t.Errorf("Content-Disposition = %q, want attachment filename", cd)
	}

	if rec := f.do("GET", "/api/v1/audit/export?format=xml", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestAuditExportSpansMultiplePages(t *testing.T) {
	actor := &auth.Actor{ID: "auditor-1"}
	f := newAPIFixture(t, actor)
	f.grant(t, actor.ID, "audit", models.LevelRead)

	seeded := audit.MaxPageSize + 50
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < seeded; i++ {
		entry := models.AuditLogEntry{
			ID:        fmt.Sprintf("bulk-%d", i),
			ActorID:   "alice",
			Action:    models.ActionView,
			Module:    "finance",
			Status:    200,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := f.auditStore.Save(context.Background(), &entry); err != nil {
			t.Fatalf("failed to seed entry: %v", err)
		}
	}

	rec := f.do("GET", "/api/v1/audit/export?format=json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var entries []models.AuditLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("export decode: %v", err)
	}
	if len(entries) != seeded {
		t.Errorf("export returned %d entries, want all %d", len(entries), seeded)
	}

	// The list surface keeps paging at MaxPageSize even when asked
	// for more.
	rec = f.do("GET", "/api/v1/audit?limit=5000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listResp struct {
		Entries []models.AuditLogEntry `json:"entries"`
		Limit   int                    `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("list decode: %v", err)
	}
	if len(listResp.Entries) != audit.MaxPageSize || listResp.Limit != audit.MaxPageSize {
		t.Errorf("list returned %d entries with limit %d, want page of %d",
			len(listResp.Entries), listResp.Limit, audit.MaxPageSize)
	}
}

func TestNotFoundIsStructuredJSON(t *testing.T) {
	actor := &auth.Actor{ID: "actor-1"}
	f := newAPIFixture(t, actor)

	rec := f.do("GET", "/api/v1/nothing-here", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	apiErr := decodeAPIError(t, rec)
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Path != "/api/v1/nothing-here" {
		t.Errorf("error body = %+v", apiErr)
	}
}

func TestParseAuditFilter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/audit", nil)
		filter, err := parseAuditFilter(r)
		if err != nil {
			t.Fatalf("parseAuditFilter() error = %v", err)
		}
		if filter.Limit != audit.DefaultPageSize {
			t.Errorf("Limit = %d, want %d", filter.Limit, audit.DefaultPageSize)
		}
		if filter.OrderBy != "created_at" || !filter.OrderDesc {
			t.Errorf("order = %s desc=%v, want created_at desc", filter.OrderBy, filter.OrderDesc)
		}
	})

	t.Run("full query", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/audit?actor_id=alice&method=DELETE&ip=203.0.113.7&q=budget"+
			"&action_type=delete&action_type=update&module=finance&module=reports"+
			"&success=false&start_time=2026-05-01T00:00:00Z&end_time=2026-06-01T00:00:00Z"+
			"&sort=actor_id&order=asc&limit=25&offset=50", nil)
		filter, err := parseAuditFilter(r)
		if err != nil {
			t.Fatalf("parseAuditFilter() error = %v", err)
		}
		if filter.ActorID != "alice" || filter.HTTPMethod != "DELETE" || filter.IPAddress != "203.0.113.7" {
			t.Errorf("scalar filters = %+v", filter)
		}
		if len(filter.ActionTypes) != 2 || len(filter.Modules) != 2 {
			t.Errorf("multi filters: actions=%v modules=%v", filter.ActionTypes, filter.Modules)
		}
		if filter.Success == nil || *filter.Success {
			t.Error("Success filter not parsed as false")
		}
		if filter.StartTime == nil || filter.EndTime == nil {
			t.Error("time range not parsed")
		}
		if filter.OrderBy != "actor_id" || filter.OrderDesc {
			t.Errorf("order = %s desc=%v, want actor_id asc", filter.OrderBy, filter.OrderDesc)
		}
		if filter.Limit != 25 || filter.Offset != 50 {
			t.Errorf("pagination = %d/%d, want 25/50", filter.Limit, filter.Offset)
		}
	})

	t.Run("limit clamped to cap", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/audit?limit=5000", nil)
		filter, err := parseAuditFilter(r)
		if err != nil {
			t.Fatalf("parseAuditFilter() error = %v", err)
		}
		if filter.Limit != audit.MaxPageSize {
			t.Errorf("Limit = %d, want clamped %d", filter.Limit, audit.MaxPageSize)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, q := range []string{
			"action_type=browse",
			"success=maybe",
			"start_time=yesterday",
			"end_time=tomorrow",
			"limit=-1",
			"limit=abc",
			"offset=-5",
		} {
			r := httptest.NewRequest("GET", "/api/v1/audit?"+q, nil)
			if _, err := parseAuditFilter(r); err == nil {
				t.Errorf("parseAuditFilter(%q) = nil error, want error", q)
			}
		}
	})
}
