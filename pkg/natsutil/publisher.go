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

// Package natsutil provides the JetStream topology and publishing helpers for
// the device event stream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/models"
)

// ErrBrokerUnavailable wraps publish failures that survived the single
// reconnect attempt. Callers decide whether to retry; nothing is buffered.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// DefaultStreamName is the durable stream carrying telemetry and device events.
const DefaultStreamName = "DEVICE_EVENTS"

// StreamSubjects are the routing keys bound to the device event stream.
var StreamSubjects = []string{models.SubjectTelemetry, models.SubjectDeviceEvent}

// EventPublisher publishes device events to NATS JetStream over one shared
// connection. Access to the JetStream context is serialized so concurrent
// callers cannot interleave a publish with a reconnect.
type EventPublisher struct {
	mu       sync.Mutex
	nc       *nats.Conn
	js       jetstream.JetStream
	stream   string
	subjects []string
	logger   zerolog.Logger
}

// NewEventPublisher connects to NATS, ensures the stream topology exists, and
// returns a ready publisher.
func NewEventPublisher(ctx context.Context, natsURL, streamName string, subjects []string, log zerolog.Logger) (*EventPublisher, error) {
	nc, err := Connect(natsURL, log)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &EventPublisher{
		nc:       nc,
		js:       js,
		stream:   streamName,
		subjects: subjects,
		logger:   log,
	}

	if err := publisher.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	return publisher, nil
}

// Connect dials NATS with logging handlers attached.
func Connect(natsURL string, log zerolog.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}

	return nc, nil
}

// ensureStream creates the stream if it does not exist yet.
func (p *EventPublisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, p.stream)
	if err == nil {
		return nil
	}

	_, err = p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      p.stream,
		Subjects:  p.subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create or get stream %s: %w", p.stream, err)
	}

	p.logger.Info().Str("stream", p.stream).Msg("Created JetStream stream")

	return nil
}

// Publish serializes the event and sends it on the shared connection. On
// failure it re-establishes the JetStream context and topology once and
// retries; a second failure is reported to the caller rather than buffered.
func (p *EventPublisher) Publish(ctx context.Context, subject string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.js.Publish(ctx, subject, payload); err == nil {
		return nil
	}

	p.logger.Warn().Str("subject", subject).Msg("Publish failed, re-establishing JetStream context")

	if err := p.reestablish(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}

	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}

	return nil
}

// reestablish rebuilds the JetStream context over the existing connection
// (the NATS client reconnects the socket itself) and re-ensures the stream.
// Callers must hold p.mu.
func (p *EventPublisher) reestablish(ctx context.Context) error {
	js, err := jetstream.New(p.nc)
	if err != nil {
		return fmt.Errorf("failed to recreate JetStream context: %w", err)
	}

	p.js = js

	return p.ensureStream(ctx)
}

// PublishTelemetry publishes a telemetry sample for a device.
func (p *EventPublisher) PublishTelemetry(ctx context.Context, deviceID int64, deviceName string, data map[string]interface{}) error {
	return p.Publish(ctx, models.SubjectTelemetry, models.EventMessage{
		EventType:  models.EventTypeTelemetry,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Data:       data,
	})
}

// PublishDeviceEvent publishes a device event (deployment, recall,
// maintenance, status change, ...).
func (p *EventPublisher) PublishDeviceEvent(ctx context.Context, deviceID int64, deviceName, eventType string, details map[string]interface{}) error {
	return p.Publish(ctx, models.SubjectDeviceEvent, models.EventMessage{
		EventType:  eventType,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Details:    details,
	})
}

// PublishStatusChange publishes the lifecycle event emitted after a
// successful transition.
func (p *EventPublisher) PublishStatusChange(ctx context.Context, deviceID int64, deviceName string,
	oldStatus, newStatus models.DeviceStatus, location string) error {
	details := map[string]interface{}{
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
	}

	if location != "" {
		details["location"] = location
	}

	return p.PublishDeviceEvent(ctx, deviceID, deviceName, "status_change", details)
}

// Close releases the NATS connection.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
	}
}
