package models

import "time"

// Broker subjects for the device event stream.
const (
	SubjectTelemetry   = "device.telemetry"
	SubjectDeviceEvent = "device.event"
)

// EventTypeTelemetry marks messages carrying metric samples; everything else
// is a lifecycle/device event named by its own type ("status_change", ...).
const EventTypeTelemetry = "telemetry"

// EventMessage is the wire form published to the broker: a fixed envelope
// plus an open map of metrics (telemetry) or details (device events).
type EventMessage struct {
	EventType  string                 `json:"event_type"`
	DeviceID   int64                  `json:"device_id"`
	DeviceName string                 `json:"device_name,omitempty"`
	Timestamp  string                 `json:"timestamp,omitempty"`
	Location   string                 `json:"location,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// EventRecord is the stored, enriched form of a telemetry sample or device
// event. Payload holds the flattened metrics or the event details.
type EventRecord struct {
	ID         string                 `json:"id"`
	DeviceID   int64                  `json:"device_id"`
	DeviceName string                 `json:"device_name,omitempty"`
	DeviceType string                 `json:"device_type"`
	EventType  string                 `json:"event_type"`
	Location   string                 `json:"location,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// EventStats summarizes one event store table.
type EventStats struct {
	TotalCount  int64   `json:"total_count"`
	DeviceCount int     `json:"device_count"`
	Devices     []int64 `json:"devices"`
}
