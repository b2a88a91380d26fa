/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle runs long-lived services with signal handling and
// graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/fleetstream/pkg/logger"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Service is a long-running component with explicit start/stop phases.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr  string
	ServiceName string
	Service     Service
	HTTPHandler http.Handler
}

// RunServer starts the service and its HTTP listener, then blocks until a
// termination signal or a server failure, shutting both down gracefully.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	log := logger.WithComponent(opts.ServiceName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Service != nil {
		if err := opts.Service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
		}
	}

	var srv *http.Server

	errCh := make(chan error, 1)

	if opts.HTTPHandler != nil {
		srv = &http.Server{
			Addr:              opts.ListenAddr,
			Handler:           opts.HTTPHandler,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		log.Info().Str("listen_addr", opts.ListenAddr).Msg("HTTP server started")
	}

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
	}

	if opts.Service != nil {
		if err := opts.Service.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Service stop error")

			if runErr == nil {
				runErr = err
			}
		}
	}

	log.Info().Msg("Shutdown complete")

	return runErr
}
