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

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/models"
)

const defaultPurgeDays = 30

// EventQuerier is the read/maintenance surface of the event store the
// monitoring API needs.
type EventQuerier interface {
	QueryEvents(ctx context.Context, kind db.EventKind, filter db.EventFilter) ([]*models.EventRecord, error)
	EventStats(ctx context.Context, kind db.EventKind) (*models.EventStats, error)
	PurgeEventsOlderThan(ctx context.Context, kind db.EventKind, cutoff time.Time) (int64, error)
}

// Subscriber accepts WebSocket subscriptions for the live event feed.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// MonitorServer exposes the stored event query API and the live feed.
type MonitorServer struct {
	router *mux.Router
	store  EventQuerier
	hub    Subscriber
	logger zerolog.Logger
}

// NewMonitorServer builds the monitoring API over the event store and the
// subscriber hub.
func NewMonitorServer(store EventQuerier, hub Subscriber, log zerolog.Logger) *MonitorServer {
	s := &MonitorServer{
		router: mux.NewRouter(),
		store:  store,
		hub:    hub,
		logger: log,
	}

	s.setupRoutes()

	return s
}

func (s *MonitorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *MonitorServer) setupRoutes() {
	s.router.HandleFunc("/health", handleHealth("monitoring")).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.ServeWS)

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/telemetry", s.queryHandler(db.KindTelemetry)).Methods("GET")
	apiRouter.HandleFunc("/telemetry/stats", s.statsHandler(db.KindTelemetry)).Methods("GET")
	apiRouter.HandleFunc("/telemetry", s.purgeHandler(db.KindTelemetry)).Methods("DELETE")
	apiRouter.HandleFunc("/events", s.queryHandler(db.KindDeviceEvent)).Methods("GET")
	apiRouter.HandleFunc("/events/stats", s.statsHandler(db.KindDeviceEvent)).Methods("GET")
	apiRouter.HandleFunc("/events", s.purgeHandler(db.KindDeviceEvent)).Methods("DELETE")
}

// eventFilterFromQuery parses the shared filter parameters. Limit bounds are
// enforced by the store.
func eventFilterFromQuery(r *http.Request) (db.EventFilter, error) {
	filter := db.EventFilter{
		DeviceType: r.URL.Query().Get("device_type"),
		EventType:  r.URL.Query().Get("event_type"),
	}

	if raw := r.URL.Query().Get("device_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, err
		}

		filter.DeviceID = &id
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}

		filter.Limit = limit
	}

	return filter, nil
}

func (s *MonitorServer) queryHandler(kind db.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := eventFilterFromQuery(r)
		if err != nil {
			writeError(w, "invalid query parameter", http.StatusBadRequest)
			return
		}

		records, err := s.store.QueryEvents(r.Context(), kind, filter)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Event query failed")
			writeError(w, "internal error", http.StatusInternalServerError)

			return
		}

		if records == nil {
			records = []*models.EventRecord{}
		}

		writeJSON(w, records, http.StatusOK)
	}
}

func (s *MonitorServer) statsHandler(kind db.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.store.EventStats(r.Context(), kind)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Stats query failed")
			writeError(w, "internal error", http.StatusInternalServerError)

			return
		}

		writeJSON(w, stats, http.StatusOK)
	}
}

// purgeHandler deletes stored events older than the requested number of days.
func (s *MonitorServer) purgeHandler(kind db.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := defaultPurgeDays

		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, "days must be a positive integer", http.StatusBadRequest)
				return
			}

			days = parsed
		}

		cutoff := time.Now().UTC().AddDate(0, 0, -days)

		deleted, err := s.store.PurgeEventsOlderThan(r.Context(), kind, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Purge failed")
			writeError(w, "internal error", http.StatusInternalServerError)

			return
		}

		s.logger.Info().
			Str("kind", string(kind)).
			Int("days", days).
			Int64("deleted", deleted).
			Msg("Purged stored events")

		writeJSON(w, map[string]interface{}{"deleted": deleted, "days": days}, http.StatusOK)
	}
}
