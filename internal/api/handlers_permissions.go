// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/audit"
	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/authz"
	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

var validate = validator.New()

// GrantRequest is the body for POST /api/v1/permissions.
type GrantRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Module  string `json:"module" validate:"required"`
	Level   string `json:"access_level" validate:"required,oneof=read write admin"`
}

// PermissionHandlers provides HTTP handlers for permission management.
type PermissionHandlers struct {
	service *authz.Service
}

// NewPermissionHandlers creates permission handlers.
func NewPermissionHandlers(service *authz.Service) *PermissionHandlers {
	return &PermissionHandlers{service: service}
}

// Grant handles POST /api/v1/permissions. Granting an existing
// (actor, module) pair overwrites the grant.
func (h *PermissionHandlers) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "actor_id, module and a valid access_level are required")
		return
	}

	grantedBy := ""
	if actor := auth.ActorFromContext(r.Context()); actor != nil {
		grantedBy = actor.ID
	}

	// Capture the replaced grant, if any, for the audit trail.
	if prev, err := h.service.List(r.Context(), req.ActorID); err == nil {
		for i := range prev {
			if prev[i].Module == req.Module {
				audit.SetBeforeState(r.Context(), prev[i])
				break
			}
		}
	}

	perm, err := h.service.Grant(r.Context(), req.ActorID, req.Module, models.AccessLevel(req.Level), grantedBy)
	if err != nil {
		if errors.Is(err, authz.ErrInvalidLevel) {
			respondError(w, r, http.StatusBadRequest, "Invalid access level")
			return
		}
		logging.Error().Err(err).Msg("Failed to grant permission")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	audit.SetAfterState(r.Context(), perm)
	writeJSON(w, http.StatusCreated, perm)
}

// List handles GET /api/v1/permissions/{actorID}.
func (h *PermissionHandlers) List(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	if actorID == "" {
		respondError(w, r, http.StatusBadRequest, "Actor ID is required")
		return
	}

	perms, err := h.service.List(r.Context(), actorID)
	if err != nil {
		logging.Error().Err(err).Str("actor_id", actorID).Msg("Failed to list permissions")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if perms == nil {
		perms = []models.Permission{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actor_id":    actorID,
		"permissions": perms,
	})
}

// ListModule handles GET /api/v1/permissions/module/{module}, the
// review view of who holds access on a functional area.
func (h *PermissionHandlers) ListModule(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	if module == "" {
		respondError(w, r, http.StatusBadRequest, "Module is required")
		return
	}

	perms, err := h.service.ListModule(r.Context(), module)
	if err != nil {
		logging.Error().Err(err).Str("module", module).Msg("Failed to list module permissions")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if perms == nil {
		perms = []models.Permission{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"module":      module,
		"permissions": perms,
	})
}

// Revoke handles DELETE /api/v1/permissions/{actorID}/{module}.
func (h *PermissionHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	module := chi.URLParam(r, "module")
	if actorID == "" || module == "" {
		respondError(w, r, http.StatusBadRequest, "Actor ID and module are required")
		return
	}

	// Snapshot the grant being removed before it is gone.
	if perm, err := h.service.List(r.Context(), actorID); err == nil {
		for i := range perm {
			if perm[i].Module == module {
				audit.SetBeforeState(r.Context(), perm[i])
				break
			}
		}
	}

	if err := h.service.Revoke(r.Context(), actorID, module); err != nil {
		if errors.Is(err, authz.ErrPermissionNotFound) {
			respondError(w, r, http.StatusNotFound, "Permission not found")
			return
		}
		logging.Error().Err(err).Msg("Failed to revoke permission")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll handles DELETE /api/v1/permissions/{actorID}, the cascade
// used when an actor record is deleted upstream.
func (h *PermissionHandlers) RevokeAll(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	if actorID == "" {
		respondError(w, r, http.StatusBadRequest, "Actor ID is required")
		return
	}

	removed, err := h.service.RevokeAllForActor(r.Context(), actorID)
	if err != nil {
		logging.Error().Err(err).Str("actor_id", actorID).Msg("Failed to revoke actor permissions")
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actor_id": actorID,
		"revoked":  removed,
	})
}
