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
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/fleetstream/pkg/models"
)

const pgUniqueViolation = "23505"

const deviceColumns = `id, name, type, serial_number, description, status, location,
	specifications, purchase_date, deploy_date, last_maintenance_date, created_at, updated_at`

// CreateDevice inserts a new device row and returns it with generated fields
// populated. A serial number collision maps to ErrDuplicateSerial.
func (db *DB) CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	created := *device

	err := db.pool.QueryRow(ctx,
		`INSERT INTO devices (name, type, serial_number, description, status, location, specifications, purchase_date)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		 RETURNING id, created_at, updated_at`,
		device.Name,
		device.Type,
		device.SerialNumber,
		nullableString(device.Description),
		device.Status,
		device.Location,
		device.Specifications,
		device.PurchaseDate,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateSerial
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return &created, nil
}

// GetDevice fetches a single device by id.
func (db *DB) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)

	return scanDevice(row)
}

// GetDeviceBySerial fetches a single device by its serial number.
func (db *DB) GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE serial_number = $1`, serial)

	return scanDevice(row)
}

// ListDevices returns all devices ordered by id.
func (db *DB) ListDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return devices, nil
}

// UpdateDevice writes the non-status fields of a device. Status is not
// touched here; transitions go through TransitionDevice.
func (db *DB) UpdateDevice(ctx context.Context, device *models.Device) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE devices SET
			name = $2,
			type = $3,
			description = NULLIF($4, ''),
			location = NULLIF($5, ''),
			specifications = NULLIF($6, ''),
			purchase_date = $7,
			updated_at = now()
		 WHERE id = $1`,
		device.ID,
		device.Name,
		device.Type,
		device.Description,
		device.Location,
		device.Specifications,
		device.PurchaseDate,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// TransitionDevice performs the conditional status write that backs a
// lifecycle transition and appends the audit entry in the same transaction.
// The row is only updated when its current status still equals from, which
// keeps concurrent transitions from interleaving; when the row does not match,
// the transaction is rolled back and false is returned with a nil error. On
// success the entry's ID and CreatedAt are populated from the inserted row.
func (db *DB) TransitionDevice(
	ctx context.Context, id int64, from, to models.DeviceStatus,
	fields StatusFields, entry *models.DeviceLogEntry) (bool, error) {
	setParts := []string{"status = $1", "updated_at = now()"}
	args := []interface{}{to}
	idx := 2

	if fields.Location != nil {
		setParts = append(setParts, fmt.Sprintf("location = NULLIF($%d, '')", idx))
		args = append(args, *fields.Location)
		idx++
	}

	if fields.DeployDate != nil {
		setParts = append(setParts, fmt.Sprintf("deploy_date = $%d", idx))
		args = append(args, *fields.DeployDate)
		idx++
	}

	if fields.MaintenanceDate != nil {
		setParts = append(setParts, fmt.Sprintf("last_maintenance_date = $%d", idx))
		args = append(args, *fields.MaintenanceDate)
		idx++
	}

	query := fmt.Sprintf(
		"UPDATE devices SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), idx, idx+1)
	args = append(args, id, from)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if err := appendDeviceLog(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		device         models.Device
		description    *string
		location       *string
		specifications *string
	)

	err := row.Scan(
		&device.ID,
		&device.Name,
		&device.Type,
		&device.SerialNumber,
		&description,
		&device.Status,
		&location,
		&specifications,
		&device.PurchaseDate,
		&device.DeployDate,
		&device.LastMaintenanceDate,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	if description != nil {
		device.Description = *description
	}

	if location != nil {
		device.Location = *location
	}

	if specifications != nil {
		device.Specifications = *specifications
	}

	return &device, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
