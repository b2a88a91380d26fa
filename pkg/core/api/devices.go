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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
	"github.com/carverauto/fleetstream/pkg/registry"
)

// EventPublisher is the publishing surface the ingestion endpoints need.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event interface{}) error
}

// DeviceServer exposes the device lifecycle and event ingestion API.
type DeviceServer struct {
	router    *mux.Router
	registry  *registry.Registry
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewDeviceServer builds the device management API over the registry and the
// event publisher.
func NewDeviceServer(reg *registry.Registry, publisher EventPublisher, log zerolog.Logger) *DeviceServer {
	s := &DeviceServer{
		router:    mux.NewRouter(),
		registry:  reg,
		publisher: publisher,
		logger:    log,
	}

	s.setupRoutes()

	return s
}

func (s *DeviceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *DeviceServer) setupRoutes() {
	s.router.HandleFunc("/health", handleHealth("device-management")).Methods("GET")

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/devices", s.createDevice).Methods("POST")
	apiRouter.HandleFunc("/devices", s.listDevices).Methods("GET")
	apiRouter.HandleFunc("/devices/{id}", s.getDevice).Methods("GET")
	apiRouter.HandleFunc("/devices/{id}", s.updateDevice).Methods("PUT")
	apiRouter.HandleFunc("/devices/{id}/transition", s.transitionDevice).Methods("POST")
	apiRouter.HandleFunc("/devices/{id}/logs", s.getDeviceLogs).Methods("GET")
	apiRouter.HandleFunc("/devices/{id}/type", s.getDeviceType).Methods("GET")
	apiRouter.HandleFunc("/telemetry", s.submitTelemetry).Methods("POST")
	apiRouter.HandleFunc("/events", s.submitEvent).Methods("POST")
}

func deviceIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// writeRegistryError maps registry errors onto status codes so callers can
// distinguish client mistakes from transient unavailability.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registry.ErrDuplicateSerial):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrInvalidTransition),
		errors.Is(err, registry.ErrLocationRequired),
		errors.Is(err, registry.ErrNameRequired),
		errors.Is(err, registry.ErrSerialRequired):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *DeviceServer) createDevice(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateDeviceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	device, err := s.registry.Create(r.Context(), req)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, device, http.StatusCreated)
}

func (s *DeviceServer) listDevices(w http.ResponseWriter, r *http.Request) {
	if serial := r.URL.Query().Get("serial_number"); serial != "" {
		device, err := s.registry.GetDeviceBySerial(r.Context(), serial)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		writeJSON(w, []*models.Device{device}, http.StatusOK)

		return
	}

	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	if devices == nil {
		devices = []*models.Device{}
	}

	writeJSON(w, devices, http.StatusOK)
}

func (s *DeviceServer) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDFromRequest(r)
	if err != nil {
		writeError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	device, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, device, http.StatusOK)
}

func (s *DeviceServer) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDFromRequest(r)
	if err != nil {
		writeError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	var req registry.UpdateDeviceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	device, err := s.registry.Update(r.Context(), id, req)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, device, http.StatusOK)
}

func (s *DeviceServer) transitionDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDFromRequest(r)
	if err != nil {
		writeError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	var req registry.TransitionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	device, err := s.registry.Transition(r.Context(), id, req)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, device, http.StatusOK)
}

func (s *DeviceServer) getDeviceLogs(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDFromRequest(r)
	if err != nil {
		writeError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.registry.History(r.Context(), id, limit)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	if entries == nil {
		entries = []*models.DeviceLogEntry{}
	}

	writeJSON(w, entries, http.StatusOK)
}

// getDeviceType serves the enrichment lookup used by the monitoring service.
func (s *DeviceServer) getDeviceType(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDFromRequest(r)
	if err != nil {
		writeError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	device, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, map[string]string{"type": string(device.Type)}, http.StatusOK)
}

// telemetry submissions carry a fixed envelope plus an open set of metrics
var telemetryEnvelopeFields = map[string]struct{}{
	"device_id":   {},
	"device_name": {},
	"timestamp":   {},
	"location":    {},
}

func (s *DeviceServer) submitTelemetry(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deviceID, ok := numberToInt64(body["device_id"])
	if !ok || deviceID <= 0 {
		writeError(w, "device_id is required", http.StatusBadRequest)
		return
	}

	msg := models.EventMessage{
		EventType:  models.EventTypeTelemetry,
		DeviceID:   deviceID,
		DeviceName: stringField(body, "device_name"),
		Timestamp:  stringField(body, "timestamp"),
		Location:   stringField(body, "location"),
		Data:       make(map[string]interface{}),
	}

	for key, value := range body {
		if _, envelope := telemetryEnvelopeFields[key]; !envelope {
			msg.Data[key] = value
		}
	}

	if err := s.publisher.Publish(r.Context(), models.SubjectTelemetry, msg); err != nil {
		s.logger.Error().Err(err).Int64("device_id", deviceID).Msg("Telemetry publish failed")
		writeBrokerError(w, err)

		return
	}

	writeJSON(w, map[string]string{"status": "queued"}, http.StatusAccepted)
}

func (s *DeviceServer) submitEvent(w http.ResponseWriter, r *http.Request) {
	var msg models.EventMessage

	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if msg.DeviceID <= 0 {
		writeError(w, "device_id is required", http.StatusBadRequest)
		return
	}

	if msg.EventType == "" {
		writeError(w, "event_type is required", http.StatusBadRequest)
		return
	}

	msg.Data = nil

	if err := s.publisher.Publish(r.Context(), models.SubjectDeviceEvent, msg); err != nil {
		s.logger.Error().Err(err).Int64("device_id", msg.DeviceID).Msg("Device event publish failed")
		writeBrokerError(w, err)

		return
	}

	writeJSON(w, map[string]string{"status": "queued"}, http.StatusAccepted)
}

func writeBrokerError(w http.ResponseWriter, err error) {
	if errors.Is(err, natsutil.ErrBrokerUnavailable) {
		writeError(w, "event broker unavailable", http.StatusServiceUnavailable)
		return
	}

	writeError(w, "failed to publish event", http.StatusInternalServerError)
}

func stringField(body map[string]interface{}, key string) string {
	if value, ok := body[key].(string); ok {
		return value
	}

	return ""
}

func numberToInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
