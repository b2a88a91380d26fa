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

// Package registry owns the device lifecycle: creation, non-status edits, and
// status transitions with their side effects (audit trail, cache
// invalidation, lifecycle events).
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/cache"
	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/models"
)

// DeviceStore is the storage surface the registry needs. Implemented by
// db.Service.
type DeviceStore interface {
	CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	TransitionDevice(ctx context.Context, id int64, from, to models.DeviceStatus,
		fields db.StatusFields, entry *models.DeviceLogEntry) (bool, error)
	GetDeviceLogs(ctx context.Context, deviceID int64, limit int) ([]*models.DeviceLogEntry, error)
}

// ReadCache is the advisory cache in front of the device store.
type ReadCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// EventPublisher emits lifecycle events after successful transitions.
// Publish failures degrade observability, never device state.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, deviceID int64, deviceName string,
		oldStatus, newStatus models.DeviceStatus, location string) error
}

// Registry is the device lifecycle manager.
type Registry struct {
	store     DeviceStore
	cache     ReadCache
	publisher EventPublisher
	logger    zerolog.Logger
	locks     keyedMutex
}

// New builds a Registry. The publisher may be nil when the event pipeline is
// not wired (lifecycle events are then skipped).
func New(store DeviceStore, readCache ReadCache, publisher EventPublisher, log zerolog.Logger) *Registry {
	return &Registry{
		store:     store,
		cache:     readCache,
		publisher: publisher,
		logger:    log,
	}
}

// CreateDeviceRequest carries the fields accepted on device creation.
type CreateDeviceRequest struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	SerialNumber   string     `json:"serial_number"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	Specifications string     `json:"specifications,omitempty"`
	PurchaseDate   *time.Time `json:"purchase_date,omitempty"`
}

// UpdateDeviceRequest carries partial non-status field edits. Nil pointers
// leave the field unchanged.
type UpdateDeviceRequest struct {
	Name           *string `json:"name,omitempty"`
	Type           *string `json:"type,omitempty"`
	Description    *string `json:"description,omitempty"`
	Location       *string `json:"location,omitempty"`
	Specifications *string `json:"specifications,omitempty"`
}

// TransitionRequest describes an attempted status change.
type TransitionRequest struct {
	Target      models.DeviceStatus `json:"status"`
	Location    string              `json:"location,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	PerformedBy *int64              `json:"performed_by,omitempty"`
}

// Create inserts a new device in status IN_STOCK. The device type is
// normalized, so legacy aliases are accepted.
func (r *Registry) Create(ctx context.Context, req CreateDeviceRequest) (*models.Device, error) {
	if req.Name == "" {
		return nil, ErrNameRequired
	}

	if req.SerialNumber == "" {
		return nil, ErrSerialRequired
	}

	device := &models.Device{
		Name:           req.Name,
		Type:           models.NormalizeDeviceType(req.Type),
		SerialNumber:   req.SerialNumber,
		Description:    req.Description,
		Status:         models.StatusInStock,
		Location:       req.Location,
		Specifications: req.Specifications,
		PurchaseDate:   req.PurchaseDate,
	}

	created, err := r.store.CreateDevice(ctx, device)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateSerial) {
			return nil, ErrDuplicateSerial
		}

		return nil, err
	}

	r.cache.Invalidate(ctx, cache.DeviceListKey)

	r.logger.Info().
		Int64("device_id", created.ID).
		Str("serial_number", created.SerialNumber).
		Msg("Device created")

	return created, nil
}

// GetDevice reads a single device through the cache. A miss falls through to
// the store and repopulates the cache.
func (r *Registry) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	key := cache.DeviceKey(id)

	if raw, ok := r.cache.Get(ctx, key); ok {
		var device models.Device
		if err := json.Unmarshal([]byte(raw), &device); err == nil {
			return &device, nil
		}
		// corrupt entry: fall through to the store
	}

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if encoded, err := json.Marshal(device); err == nil {
		r.cache.Set(ctx, key, string(encoded), cache.DeviceTTL)
	}

	return device, nil
}

// GetDeviceBySerial looks a device up by its serial number. Serial lookups
// are rare (inventory reconciliation), so they bypass the cache.
func (r *Registry) GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	if serial == "" {
		return nil, ErrSerialRequired
	}

	device, err := r.store.GetDeviceBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return device, nil
}

// ListDevices reads the device collection through the cache.
func (r *Registry) ListDevices(ctx context.Context) ([]*models.Device, error) {
	if raw, ok := r.cache.Get(ctx, cache.DeviceListKey); ok {
		var devices []*models.Device
		if err := json.Unmarshal([]byte(raw), &devices); err == nil {
			return devices, nil
		}
	}

	devices, err := r.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(devices); err == nil {
		r.cache.Set(ctx, cache.DeviceListKey, string(encoded), cache.DeviceListTTL)
	}

	return devices, nil
}

// Update applies partial non-status field edits. It never touches status and
// appends no audit entry, but still invalidates the cache.
func (r *Registry) Update(ctx context.Context, id int64, req UpdateDeviceRequest) (*models.Device, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if req.Name != nil {
		device.Name = *req.Name
	}

	if req.Type != nil {
		device.Type = models.NormalizeDeviceType(*req.Type)
	}

	if req.Description != nil {
		device.Description = *req.Description
	}

	if req.Location != nil {
		device.Location = *req.Location
	}

	if req.Specifications != nil {
		device.Specifications = *req.Specifications
	}

	if err := r.store.UpdateDevice(ctx, device); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	r.cache.Invalidate(ctx, cache.DeviceKey(id), cache.DeviceListKey)

	return device, nil
}

// Transition is the sole path that changes a device's status. It validates
// the move against the state machine, performs the conditional status write
// and audit append as one atomic store call, invalidates the cache, and emits
// a lifecycle event. The event publish is best-effort: a broker outage
// degrades observability, not device state.
func (r *Registry) Transition(ctx context.Context, id int64, req TransitionRequest) (*models.Device, error) {
	if !req.Target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Target)
	}

	// Serialize transitions per device so two concurrent requests cannot
	// interleave their read-validate-write sequences.
	unlock := r.locks.lock(id)
	defer unlock()

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	from := device.Status

	if !CanTransition(from, req.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, req.Target)
	}

	fields, err := statusFieldsFor(from, req)
	if err != nil {
		return nil, err
	}

	entry := &models.DeviceLogEntry{
		DeviceID:    id,
		Action:      transitionAction(from, req.Target),
		OldStatus:   from,
		NewStatus:   req.Target,
		PerformedBy: req.PerformedBy,
		Notes:       req.Notes,
	}

	// Status write and audit append commit together. A failed append rolls
	// the status change back, so a retry sees the pre-transition status.
	matched, err := r.store.TransitionDevice(ctx, id, from, req.Target, fields, entry)
	if err != nil {
		return nil, err
	}

	if !matched {
		// The conditional update is the backstop: the row moved under us.
		return nil, fmt.Errorf("%w: device status changed concurrently", ErrInvalidTransition)
	}

	// Invalidation precedes acknowledging the write so the caller never
	// reads its own stale snapshot.
	r.cache.Invalidate(ctx, cache.DeviceKey(id), cache.DeviceListKey)

	updated, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.publisher != nil {
		if pubErr := r.publisher.PublishStatusChange(ctx, updated.ID, updated.Name, from, req.Target, updated.Location); pubErr != nil {
			r.logger.Warn().
				Err(pubErr).
				Int64("device_id", id).
				Str("old_status", string(from)).
				Str("new_status", string(req.Target)).
				Msg("Lifecycle event publish failed, transition not rolled back")
		}
	}

	r.logger.Info().
		Int64("device_id", id).
		Str("old_status", string(from)).
		Str("new_status", string(req.Target)).
		Msg("Device transitioned")

	return updated, nil
}

// History returns the most recent audit entries for a device.
func (r *Registry) History(ctx context.Context, id int64, limit int) ([]*models.DeviceLogEntry, error) {
	if _, err := r.GetDevice(ctx, id); err != nil {
		return nil, err
	}

	return r.store.GetDeviceLogs(ctx, id, limit)
}

// statusFieldsFor derives the side-effect field writes of a transition:
// deploying requires a location and stamps deploy_date, recalling clears or
// replaces the location, entering maintenance stamps last_maintenance_date.
func statusFieldsFor(from models.DeviceStatus, req TransitionRequest) (db.StatusFields, error) {
	var fields db.StatusFields

	now := time.Now().UTC()

	switch req.Target {
	case models.StatusDeployed:
		if req.Location == "" {
			return fields, ErrLocationRequired
		}

		fields.Location = &req.Location
		fields.DeployDate = &now
	case models.StatusInStock:
		if from == models.StatusDeployed {
			// Recall: replace the field location, clearing it when the
			// request names no warehouse.
			fields.Location = &req.Location
		} else if req.Location != "" {
			fields.Location = &req.Location
		}
	case models.StatusMaintenance:
		fields.MaintenanceDate = &now

		if req.Location != "" {
			fields.Location = &req.Location
		}
	default:
		if req.Location != "" {
			fields.Location = &req.Location
		}
	}

	return fields, nil
}

// keyedMutex serializes operations per device id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()

	if k.locks == nil {
		k.locks = make(map[int64]*sync.Mutex)
	}

	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}

	k.mu.Unlock()

	l.Lock()

	return l.Unlock
}
