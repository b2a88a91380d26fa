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

// Package core assembles the device management service: storage, read cache,
// event publisher, lifecycle registry, and the HTTP API on top.
package core

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/cache"
	"github.com/carverauto/fleetstream/pkg/core/api"
	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/lifecycle"
	"github.com/carverauto/fleetstream/pkg/natsutil"
	"github.com/carverauto/fleetstream/pkg/registry"
)

// Service owns the device management resources and their shutdown order.
type Service struct {
	cfg       *Config
	db        db.Service
	cache     *cache.Cache
	publisher *natsutil.EventPublisher
	handler   http.Handler
	logger    zerolog.Logger
}

// NewService dials the database, the cache, and the broker, then wires the
// registry and the HTTP API over them.
func NewService(ctx context.Context, cfg *Config, log zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	readCache, err := cache.New(ctx, cfg.Redis, log)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	publisher, err := natsutil.NewEventPublisher(ctx, cfg.NATSURL, cfg.StreamName, natsutil.StreamSubjects, log)
	if err != nil {
		_ = readCache.Close()
		_ = database.Close()

		return nil, err
	}

	reg := registry.New(database, readCache, publisher, log)

	return &Service{
		cfg:       cfg,
		db:        database,
		cache:     readCache,
		publisher: publisher,
		handler:   api.NewDeviceServer(reg, publisher, log),
		logger:    log,
	}, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start logs readiness. The resources were dialed in NewService so a
// misconfiguration fails before the listener opens.
func (s *Service) Start(_ context.Context) error {
	s.logger.Info().
		Str("stream", s.cfg.StreamName).
		Msg("Device management service started")

	return nil
}

// Stop releases the broker, cache, and database connections.
func (s *Service) Stop(_ context.Context) error {
	s.publisher.Close()
	_ = s.cache.Close()
	_ = s.db.Close()

	s.logger.Info().Msg("Device management service stopped")

	return nil
}

var _ lifecycle.Service = (*Service)(nil)
