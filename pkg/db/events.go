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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fleetstream/pkg/models"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// clampEventLimit bounds a caller-supplied limit to [1, maxEventLimit].
func clampEventLimit(limit int) int {
	if limit <= 0 {
		return defaultEventLimit
	}

	if limit > maxEventLimit {
		return maxEventLimit
	}

	return limit
}

// InsertEvent persists one enriched event row and returns its id. Missing id
// and timestamp are assigned here so every stored row carries both.
func (db *DB) InsertEvent(ctx context.Context, kind EventKind, record *models.EventRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	var payload []byte

	if len(record.Payload) > 0 {
		var err error

		payload, err = json.Marshal(record.Payload)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO `+kind.tableName()+` (id, device_id, device_name, device_type, event_type, location, payload, event_timestamp)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8)`,
		record.ID,
		record.DeviceID,
		record.DeviceName,
		record.DeviceType,
		record.EventType,
		record.Location,
		payload,
		record.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return record.ID, nil
}

// QueryEvents returns events most-recent-first, filtered by device id and
// type, bounded by the clamped limit.
func (db *DB) QueryEvents(ctx context.Context, kind EventKind, filter EventFilter) ([]*models.EventRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.DeviceID != nil {
		addCondition("device_id", *filter.DeviceID)
	}

	if filter.DeviceType != "" {
		addCondition("device_type", filter.DeviceType)
	}

	if filter.EventType != "" {
		addCondition("event_type", filter.EventType)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, clampEventLimit(filter.Limit))
	query := fmt.Sprintf(
		`SELECT id, device_id, COALESCE(device_name, ''), device_type, event_type, COALESCE(location, ''), payload, event_timestamp
		 FROM %s%s ORDER BY event_timestamp DESC LIMIT $%d`,
		kind.tableName(), where, len(args))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var records []*models.EventRecord

	for rows.Next() {
		var (
			record  models.EventRecord
			payload []byte
		)

		err := rows.Scan(
			&record.ID,
			&record.DeviceID,
			&record.DeviceName,
			&record.DeviceType,
			&record.EventType,
			&record.Location,
			&payload,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &record.Payload); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
			}
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return records, nil
}

// EventStats returns the total row count and the distinct device ids observed
// in one event store table.
func (db *DB) EventStats(ctx context.Context, kind EventKind) (*models.EventStats, error) {
	stats := &models.EventStats{}

	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+kind.tableName()).Scan(&stats.TotalCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT device_id FROM `+kind.tableName()+` ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID int64

		if err := rows.Scan(&deviceID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		stats.Devices = append(stats.Devices, deviceID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	stats.DeviceCount = len(stats.Devices)

	return stats, nil
}

// PurgeEventsOlderThan deletes rows whose event timestamp is before cutoff
// and returns how many were removed.
func (db *DB) PurgeEventsOlderThan(ctx context.Context, kind EventKind, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM `+kind.tableName()+` WHERE event_timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return tag.RowsAffected(), nil
}
