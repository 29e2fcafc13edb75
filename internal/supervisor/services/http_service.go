// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package services adapts blocking components to the suture service
// contract.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arbiterhq/arbiter/internal/logging"
)

// HTTPServerService wraps an http.Server so it can run under a suture
// supervisor. ListenAndServe blocks, so it runs in a goroutine and
// the service watches both the error channel and ctx cancellation.
type HTTPServerService struct {
	name            string
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPServerService creates a supervised HTTP server service.
func NewHTTPServerService(name string, server *http.Server, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		name:            name,
		server:          server,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	logger := logging.With().Str("component", h.name).Logger()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", h.server.Addr).Msg("HTTP server listening")
		errCh <- h.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return h.name
}
