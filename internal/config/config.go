// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package config loads Arbiter's configuration using Koanf v2 with layered
// sources (highest priority wins):
//
//  1. Environment variables (ARBITER_ prefix, e.g. ARBITER_SERVER_PORT)
//  2. Config file (config.yaml)
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Identity  IdentityConfig  `koanf:"identity"`
	Audit     AuditConfig     `koanf:"audit"`
	Geo       GeoConfig       `koanf:"geo"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// ReadTimeout bounds reading the full request including body.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writes of the response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins for the admin UI.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests is the per-IP request budget per window.
	// Zero disables rate limiting.
	RateLimitRequests int `koanf:"rate_limit_requests"`

	// RateLimitWindow is the rate limit accounting window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// MaxPageSize caps list pagination. Requests asking for more are
	// clamped, not rejected.
	MaxPageSize int `koanf:"max_page_size"`
}

// DatabaseConfig holds settings for the embedded DuckDB store.
type DatabaseConfig struct {
	// Path is the database file location. ":memory:" keeps everything
	// in-process, which is what the tests use.
	Path string `koanf:"path"`

	// MaxMemory limits DuckDB's memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`
}

// IdentityConfig configures trust in the upstream identity layer.
type IdentityConfig struct {
	// TokenSecret is the shared HMAC secret the gateway signs actor
	// assertions with. Required in production.
	TokenSecret string `koanf:"token_secret"`

	// TokenIssuer, when set, must match the assertion's iss claim.
	TokenIssuer string `koanf:"token_issuer"`
}

// AuditConfig tunes the audit pipeline.
type AuditConfig struct {
	// DrainInterval is how often the async worker drains the queue.
	DrainInterval time.Duration `koanf:"drain_interval"`

	// DrainBatchSize is the maximum entries written per drain tick.
	DrainBatchSize int `koanf:"drain_batch_size"`

	// MaxRetries is how many write attempts a queued entry gets before
	// being dropped.
	MaxRetries int `koanf:"max_retries"`

	// QueueCapacity bounds the in-memory queue. Enqueue on a full queue
	// drops the entry with a diagnostic rather than blocking.
	QueueCapacity int `koanf:"queue_capacity"`

	// FlushTimeout bounds the shutdown flush of the async queue.
	FlushTimeout time.Duration `koanf:"flush_timeout"`

	// RetentionDays is how long audit entries are kept.
	RetentionDays int `koanf:"retention_days"`

	// RetentionInterval is how often the retention purge runs.
	RetentionInterval time.Duration `koanf:"retention_interval"`

	// DeadLetterPath is the BadgerDB directory where critical entries
	// that failed their blocking write are parked for replay. Empty
	// disables the dead-letter store.
	DeadLetterPath string `koanf:"dead_letter_path"`

	// MaxPayloadBytes caps how much of a request body is captured into
	// an audit entry.
	MaxPayloadBytes int64 `koanf:"max_payload_bytes"`
}

// GeoConfig configures offline IP geolocation.
type GeoConfig struct {
	// MMDBPath points at a MaxMind GeoLite2/GeoIP2 City database file.
	// Empty disables geolocation; entries then carry no geo fields.
	MMDBPath string `koanf:"mmdb_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all sensible default values.
// These defaults are applied first, then overridden by config file and
// environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8484,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			MaxPageSize:       100,
		},
		Database: DatabaseConfig{
			Path:      "/data/arbiter.duckdb",
			MaxMemory: "1GB",
		},
		Identity: IdentityConfig{
			TokenSecret: "",
			TokenIssuer: "",
		},
		Audit: AuditConfig{
			DrainInterval:     time.Second,
			DrainBatchSize:    10,
			MaxRetries:        3,
			QueueCapacity:     10000,
			FlushTimeout:      5 * time.Second,
			RetentionDays:     365,
			RetentionInterval: 24 * time.Hour,
			DeadLetterPath:    "/data/audit-deadletter",
			MaxPayloadBytes:   64 << 10, // 64KB
		},
		Geo: GeoConfig{
			MMDBPath: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Identity.TokenSecret == "" {
		return errors.New("identity.token_secret is required (shared secret with the identity gateway)")
	}
	if len(c.Identity.TokenSecret) < 32 {
		return errors.New("identity.token_secret must be at least 32 characters")
	}
	if c.Audit.DrainInterval <= 0 {
		return errors.New("audit.drain_interval must be positive")
	}
	if c.Audit.DrainBatchSize <= 0 {
		return errors.New("audit.drain_batch_size must be positive")
	}
	if c.Audit.MaxRetries < 1 {
		return errors.New("audit.max_retries must be at least 1")
	}
	if c.Audit.RetentionDays < 1 {
		return errors.New("audit.retention_days must be at least 1")
	}
	if c.Server.MaxPageSize < 1 || c.Server.MaxPageSize > 100 {
		return fmt.Errorf("server.max_page_size must be within [1,100], got %d", c.Server.MaxPageSize)
	}
	return nil
}
