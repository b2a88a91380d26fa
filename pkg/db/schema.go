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

package db

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'other',
		serial_number TEXT NOT NULL UNIQUE,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'in_stock',
		location TEXT,
		specifications TEXT,
		purchase_date TIMESTAMPTZ,
		deploy_date TIMESTAMPTZ,
		last_maintenance_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_serial ON devices (serial_number)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices (status)`,

	`CREATE TABLE IF NOT EXISTS device_logs (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		device_id BIGINT NOT NULL,
		action TEXT NOT NULL,
		old_status TEXT,
		new_status TEXT,
		performed_by BIGINT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_logs_device ON device_logs (device_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS telemetry (
		id UUID PRIMARY KEY,
		device_id BIGINT NOT NULL,
		device_name TEXT,
		device_type TEXT NOT NULL DEFAULT 'other',
		event_type TEXT NOT NULL,
		location TEXT,
		payload JSONB,
		event_timestamp TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_device ON telemetry (device_id, event_timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_timestamp ON telemetry (event_timestamp DESC)`,

	`CREATE TABLE IF NOT EXISTS device_events (
		id UUID PRIMARY KEY,
		device_id BIGINT NOT NULL,
		device_name TEXT,
		device_type TEXT NOT NULL DEFAULT 'other',
		event_type TEXT NOT NULL,
		location TEXT,
		payload JSONB,
		event_timestamp TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_events_device ON device_events (device_id, event_timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_device_events_timestamp ON device_events (event_timestamp DESC)`,
}

// initSchema creates the tables and indexes on startup. Statements are
// idempotent so repeated boots are safe.
func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInit, err)
		}
	}

	return nil
}
