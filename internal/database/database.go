// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package database owns the embedded DuckDB connection and schema for the
// permission table and the audit trail. Higher layers (internal/authz,
// internal/audit) operate on the *sql.DB it hands out; all schema lives
// here so migrations stay in one place.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver registration

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/logging"
)

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the DuckDB database and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	connStr := cfg.Path
	if cfg.MaxMemory != "" && cfg.Path != ":memory:" {
		connStr = fmt.Sprintf("%s?access_mode=read_write&max_memory=%s", cfg.Path, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// DuckDB is an embedded single-writer store; a small pool is enough.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// Conn exposes the underlying connection for the store layers.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive, for readiness checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// schema is the full DDL for Arbiter's two tables. Statements are split on
// semicolons and executed one by one; everything is IF NOT EXISTS so the
// migration is idempotent.
const schema = `
	CREATE TABLE IF NOT EXISTS permissions (
		actor_id TEXT NOT NULL,
		module TEXT NOT NULL,
		access_level TEXT NOT NULL,
		granted_by TEXT NOT NULL,
		granted_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (actor_id, module)
	);

	CREATE INDEX IF NOT EXISTS idx_permissions_actor ON permissions(actor_id);
	CREATE INDEX IF NOT EXISTS idx_permissions_module ON permissions(module);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		actor_email TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_description TEXT NOT NULL,
		module TEXT,
		http_method TEXT,
		endpoint_path TEXT,
		request_payload JSON,
		response_status INTEGER,
		response_time_ms BIGINT,
		ip_address TEXT,
		user_agent TEXT,
		geo_city TEXT,
		geo_country TEXT,
		before_state JSON,
		after_state JSON,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_log(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_action_type ON audit_log(action_type);
	CREATE INDEX IF NOT EXISTS idx_audit_module ON audit_log(module);
	CREATE INDEX IF NOT EXISTS idx_audit_ip ON audit_log(ip_address)
`

// migrate applies the schema.
func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Debug().Msg("Schema created/verified")
	return nil
}
