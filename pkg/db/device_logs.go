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

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleetstream/pkg/models"
)

const defaultLogLimit = 100

// appendDeviceLog writes one immutable audit trail entry inside the caller's
// transaction, so the entry commits or rolls back with the status write it
// records.
func appendDeviceLog(ctx context.Context, tx pgx.Tx, entry *models.DeviceLogEntry) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO device_logs (device_id, action, old_status, new_status, performed_by, notes)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		 RETURNING id, created_at`,
		entry.DeviceID,
		entry.Action,
		entry.OldStatus,
		entry.NewStatus,
		entry.PerformedBy,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

// GetDeviceLogs returns the most recent audit entries for a device.
func (db *DB) GetDeviceLogs(ctx context.Context, deviceID int64, limit int) ([]*models.DeviceLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, device_id, action, COALESCE(old_status, ''), COALESCE(new_status, ''), performed_by, COALESCE(notes, ''), created_at
		 FROM device_logs
		 WHERE device_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var entries []*models.DeviceLogEntry

	for rows.Next() {
		var entry models.DeviceLogEntry

		err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.Action,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.PerformedBy,
			&entry.Notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return entries, nil
}
