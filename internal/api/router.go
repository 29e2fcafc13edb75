// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/authz"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/middleware"
	"github.com/arbiterhq/arbiter/internal/models"
)

// Router wires the HTTP surface: health without authentication,
// metrics, and the authenticated API gated per route group by module
// and level.
type Router struct {
	cfg                config.ServerConfig
	authMiddleware     *auth.Middleware
	authzMiddleware    *authz.Middleware
	permissionHandlers *PermissionHandlers
	auditHandlers      *AuditHandlers
	healthHandlers     *HealthHandlers
}

// NewRouter creates a Router over the given handlers and middleware.
func NewRouter(
	cfg config.ServerConfig,
	authMW *auth.Middleware,
	authzMW *authz.Middleware,
	perms *PermissionHandlers,
	auditH *AuditHandlers,
	health *HealthHandlers,
) *Router {
	return &Router{
		cfg:                cfg,
		authMiddleware:     authMW,
		authzMiddleware:    authzMW,
		permissionHandlers: perms,
		auditHandlers:      auditH,
		healthHandlers:     health,
	}
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(rt.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.IdentityTokenHeader, middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/healthz", func(r chi.Router) {
		r.Get("/live", rt.healthHandlers.Live)
		r.Get("/ready", rt.healthHandlers.Ready)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow))
		}
		r.Use(rt.authMiddleware.Authenticate)

		r.Route("/permissions", func(r chi.Router) {
			// Reading grants needs read; every mutation needs admin
			// on the permissions module itself.
			r.With(rt.requireModule("permissions", models.LevelRead)).
				Get("/module/{module}", rt.permissionHandlers.ListModule)
			r.With(rt.requireModule("permissions", models.LevelRead)).
				Get("/{actorID}", rt.permissionHandlers.List)
			r.With(rt.requireModule("permissions", models.LevelAdmin)).
				Post("/", rt.permissionHandlers.Grant)
			r.With(rt.requireModule("permissions", models.LevelAdmin)).
				Delete("/{actorID}", rt.permissionHandlers.RevokeAll)
			r.With(rt.requireModule("permissions", models.LevelAdmin)).
				Delete("/{actorID}/{module}", rt.permissionHandlers.Revoke)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(rt.requireModule("audit", models.LevelRead))
			r.Get("/", rt.auditHandlers.List)
			r.Get("/stats", rt.auditHandlers.Stats)
			r.Get("/export", rt.auditHandlers.Export)
			r.Get("/{id}", rt.auditHandlers.Get)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func (rt *Router) requireModule(module string, level models.AccessLevel) func(http.Handler) http.Handler {
	return rt.authzMiddleware.RequireModule(module, level)
}
