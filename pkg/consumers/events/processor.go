package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/fanout"
	"github.com/carverauto/fleetstream/pkg/models"
)

var (
	// ErrMalformedMessage marks messages that can never be processed. They
	// are logged and acknowledged so a poison message cannot block the queue.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrStoreEvent marks transient persistence failures eligible for
	// redelivery.
	ErrStoreEvent = errors.New("failed to store event")
)

// EventStore is the persistence surface the processor needs.
type EventStore interface {
	InsertEvent(ctx context.Context, kind db.EventKind, record *models.EventRecord) (string, error)
}

// TypeResolver enriches events with the device's canonical type.
type TypeResolver interface {
	Resolve(ctx context.Context, deviceID int64) string
}

// Enqueuer hands enriched events to the broadcast fan-out.
type Enqueuer interface {
	Enqueue(event string, record *models.EventRecord)
}

// Processor turns one broker message into one enriched, stored, broadcast
// event record.
type Processor struct {
	store    EventStore
	resolver TypeResolver
	fanout   Enqueuer
	logger   zerolog.Logger
}

func NewProcessor(store EventStore, resolver TypeResolver, enqueuer Enqueuer, log zerolog.Logger) *Processor {
	return &Processor{
		store:    store,
		resolver: resolver,
		fanout:   enqueuer,
		logger:   log,
	}
}

// Process decodes the message, defaults its timestamp, flattens telemetry
// metrics into the record payload, enriches it with the device type, persists
// it, and enqueues it for broadcast.
func (p *Processor) Process(ctx context.Context, subject string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}

	var msg models.EventMessage

	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if msg.DeviceID == 0 {
		return fmt.Errorf("%w: missing device_id", ErrMalformedMessage)
	}

	record := &models.EventRecord{
		DeviceID:   msg.DeviceID,
		DeviceName: msg.DeviceName,
		EventType:  msg.EventType,
		Location:   msg.Location,
		Timestamp:  parseTimestamp(msg.Timestamp),
	}

	var (
		kind      db.EventKind
		broadcast string
	)

	if subject == models.SubjectTelemetry {
		kind = db.KindTelemetry
		broadcast = fanout.EventTelemetry
		record.Payload = msg.Data

		if record.EventType == "" {
			record.EventType = models.EventTypeTelemetry
		}
	} else {
		kind = db.KindDeviceEvent
		broadcast = fanout.EventDeviceEvent
		record.Payload = msg.Details

		if record.EventType == "" {
			record.EventType = "device_event"
		}
	}

	record.DeviceType = p.resolver.Resolve(ctx, msg.DeviceID)

	if _, err := p.store.InsertEvent(ctx, kind, record); err != nil {
		p.logger.Error().Err(err).Int64("device_id", msg.DeviceID).Msg("Failed to store event")
		return fmt.Errorf("%w: %w", ErrStoreEvent, err)
	}

	p.fanout.Enqueue(broadcast, record)

	p.logger.Debug().
		Int64("device_id", record.DeviceID).
		Str("event_type", record.EventType).
		Str("device_type", record.DeviceType).
		Msg("Event stored")

	return nil
}

// parseTimestamp accepts the producer's RFC 3339 timestamp and falls back to
// now so every stored event carries one.
func parseTimestamp(value string) time.Time {
	if value != "" {
		if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return ts
		}

		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return ts
		}
	}

	return time.Now().UTC()
}
