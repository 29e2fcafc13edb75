// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package main is the entry point for the Arbiter server.
//
// Arbiter is the authorization and audit core behind an admin portal:
// it answers module-scoped permission checks for authenticated actors
// and records every privileged action into a durable, queryable audit
// trail.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Database: embedded DuckDB with the permissions and audit schema
//  3. Dead letter store: BadgerDB parking lot for failed critical
//     audit writes, replayed on startup
//  4. Audit pipeline: builder, synchronous writer, async queue
//  5. Authorization: permission service with a short-TTL decision cache
//  6. HTTP server: REST API under /api/v1 plus health and metrics
//
// Background loops (queue drain, retention purge) and the HTTP server
// run under a suture supervision tree so a crashed component restarts
// with backoff instead of killing the process.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (ARBITER_ prefix)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// ARBITER_IDENTITY_TOKEN_SECRET is required: it is the shared HMAC
// secret the identity gateway signs actor assertions with.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM:
//   - Stops accepting new connections and drains in-flight requests
//   - Flushes the async audit queue (bounded by audit.flush_timeout)
//   - Closes the dead letter store and database
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbiterhq/arbiter/internal/api"
	"github.com/arbiterhq/arbiter/internal/audit"
	"github.com/arbiterhq/arbiter/internal/auth"
	"github.com/arbiterhq/arbiter/internal/authz"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/database"
	"github.com/arbiterhq/arbiter/internal/geo"
	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/supervisor"
	"github.com/arbiterhq/arbiter/internal/supervisor/services"
)

// decisionCacheTTL is how long an access decision may be served from
// cache. Kept short so revocations take effect quickly on other nodes.
const decisionCacheTTL = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger: config (and its logging section) is not available.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("retention_days", cfg.Audit.RetentionDays).
		Msg("Starting Arbiter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	auditStore := audit.NewDuckDBStore(db.Conn())
	permStore := authz.NewDuckDBPermissionStore(db.Conn())

	// Geolocation is optional; without a database entries simply carry
	// no geo fields.
	var resolver geo.Resolver = geo.NoopResolver{}
	if cfg.Geo.MMDBPath != "" {
		mmdb, err := geo.NewMaxMindResolver(cfg.Geo.MMDBPath)
		if err != nil {
			logging.Warn().Err(err).Str("path", cfg.Geo.MMDBPath).Msg("Failed to open MaxMind database, geolocation disabled")
		} else {
			resolver = mmdb
			logging.Info().Str("path", cfg.Geo.MMDBPath).Msg("Geolocation enabled")
		}
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing geo resolver")
		}
	}()

	var deadLetter *audit.DeadLetter
	if cfg.Audit.DeadLetterPath != "" {
		deadLetter, err = audit.OpenDeadLetter(cfg.Audit.DeadLetterPath)
		if err != nil {
			logging.Warn().Err(err).Str("path", cfg.Audit.DeadLetterPath).Msg("Failed to open dead letter store, critical write fallback disabled")
		} else {
			defer func() {
				if err := deadLetter.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing dead letter store")
				}
			}()
			// Entries parked during a previous outage get another chance
			// now that the store is reachable again.
			if replayed, err := deadLetter.Replay(ctx, auditStore); err != nil {
				logging.Warn().Err(err).Msg("Dead letter replay failed")
			} else if replayed > 0 {
				logging.Info().Int("replayed", replayed).Msg("Replayed parked audit entries")
			}
		}
	}

	builder := audit.NewBuilder(resolver, int(cfg.Audit.MaxPayloadBytes))
	writer := audit.NewWriter(auditStore, deadLetter)
	queue := audit.NewQueue(auditStore, audit.QueueConfig{
		DrainInterval:  cfg.Audit.DrainInterval,
		DrainBatchSize: cfg.Audit.DrainBatchSize,
		MaxRetries:     cfg.Audit.MaxRetries,
		Capacity:       cfg.Audit.QueueCapacity,
		FlushTimeout:   cfg.Audit.FlushTimeout,
	})
	recorder := audit.NewRecorder(builder, writer, queue)

	retention := audit.NewRetention(auditStore, audit.RetentionConfig{
		RetentionDays: cfg.Audit.RetentionDays,
		Interval:      cfg.Audit.RetentionInterval,
	})

	authzService := authz.NewService(permStore, decisionCacheTTL)
	defer authzService.Close()

	tokenSource := auth.NewTokenSource([]byte(cfg.Identity.TokenSecret), cfg.Identity.TokenIssuer)
	authMiddleware := auth.NewMiddleware(tokenSource)
	authzMiddleware := authz.NewMiddleware(authzService, recorder, int(cfg.Audit.MaxPayloadBytes))

	router := api.NewRouter(
		cfg.Server,
		authMiddleware,
		authzMiddleware,
		api.NewPermissionHandlers(authzService),
		api.NewAuditHandlers(auditStore),
		api.NewHealthHandlers(db),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAuditService(queue)
	tree.AddAuditService(retention)
	tree.AddAPIService(services.NewHTTPServerService("http-server", server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Arbiter stopped gracefully")
}
