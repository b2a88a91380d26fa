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

// Package db provides Postgres-backed storage for devices, the device audit
// trail, and the telemetry/device-event store.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/models"
)

// EventKind selects which event store table an operation targets.
type EventKind string

const (
	KindTelemetry   EventKind = "telemetry"
	KindDeviceEvent EventKind = "device_event"
)

// tableName maps an event kind to its backing table. Kinds are internal
// constants, never caller input, so the mapping is safe to interpolate.
func (k EventKind) tableName() string {
	if k == KindTelemetry {
		return "telemetry"
	}

	return "device_events"
}

// StatusFields carries the optional field updates that ride along with a
// status transition. A nil pointer leaves the column untouched; a pointer to
// the zero value clears it.
type StatusFields struct {
	Location        *string
	DeployDate      *time.Time
	MaintenanceDate *time.Time
}

// EventFilter bounds an event store query.
type EventFilter struct {
	DeviceID   *int64
	DeviceType string
	EventType  string
	Limit      int
}

// Service is the storage contract consumed by the registry, the consumer
// pipeline, and the query API.
type Service interface {
	CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	TransitionDevice(ctx context.Context, id int64, from, to models.DeviceStatus,
		fields StatusFields, entry *models.DeviceLogEntry) (bool, error)

	GetDeviceLogs(ctx context.Context, deviceID int64, limit int) ([]*models.DeviceLogEntry, error)

	InsertEvent(ctx context.Context, kind EventKind, record *models.EventRecord) (string, error)
	QueryEvents(ctx context.Context, kind EventKind, filter EventFilter) ([]*models.EventRecord, error)
	EventStats(ctx context.Context, kind EventKind) (*models.EventStats, error)
	PurgeEventsOlderThan(ctx context.Context, kind EventKind, cutoff time.Time) (int64, error)

	Close() error
}

// DB implements Service on a pgx connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New dials the configured database, bootstraps the schema, and returns a
// ready Service.
func New(ctx context.Context, cfg *models.DatabaseConfig, log zerolog.Logger) (*DB, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	database := &DB{pool: pool, logger: log}

	if err := database.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return database, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}
