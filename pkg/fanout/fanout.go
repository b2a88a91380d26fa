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

// Package fanout decouples the consumer's acknowledgment path from real-time
// delivery to live subscribers through a bounded internal queue.
package fanout

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/models"
)

// Subscriber event names pushed to live clients.
const (
	EventTelemetry   = "telemetry"
	EventDeviceEvent = "device_event"
)

const (
	defaultQueueSize = 256
	drainGracePeriod = 2 * time.Second
)

// Message is one broadcast unit: a named event plus its enriched payload.
type Message struct {
	Event string              `json:"event"`
	Data  *models.EventRecord `json:"data"`
}

// Sink receives drained messages. Implemented by Hub.
type Sink interface {
	Broadcast(msg Message)
}

// Broadcaster owns the bounded queue between the event consumer and the
// dispatch loop. Enqueue never blocks the caller: when the queue is full the
// oldest queued message is dropped and counted.
type Broadcaster struct {
	queue   chan Message
	sink    Sink
	logger  zerolog.Logger
	dropped atomic.Uint64
}

// New builds a Broadcaster draining into sink. queueSize <= 0 selects the
// default capacity.
func New(sink Sink, queueSize int, log zerolog.Logger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Broadcaster{
		queue:  make(chan Message, queueSize),
		sink:   sink,
		logger: log,
	}
}

// Enqueue hands a message to the dispatch loop without blocking. On overflow
// the oldest queued message is dropped (subscribers prefer fresh data over
// complete history) and a warning is logged.
func (b *Broadcaster) Enqueue(event string, record *models.EventRecord) {
	msg := Message{Event: event, Data: record}

	select {
	case b.queue <- msg:
		return
	default:
	}

	// Queue full: evict the oldest entry, then try once more. A concurrent
	// drain can empty the slot between the two selects, so the second push
	// may simply succeed.
	select {
	case dropped := <-b.queue:
		b.dropped.Add(1)
		b.logger.Warn().
			Str("event", dropped.Event).
			Uint64("total_dropped", b.dropped.Load()).
			Msg("Broadcast queue full, dropped oldest message")
	default:
	}

	select {
	case b.queue <- msg:
	default:
		b.dropped.Add(1)
		b.logger.Warn().
			Str("event", msg.Event).
			Uint64("total_dropped", b.dropped.Load()).
			Msg("Broadcast queue full, dropped message")
	}
}

// Dropped returns how many messages have been discarded on overflow.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Run drains the queue and emits each message to the sink. On cancellation it
// attempts final delivery of already-queued messages within a short grace
// period before returning.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info().Int("capacity", cap(b.queue)).Msg("Broadcast dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			b.drain()
			b.logger.Info().Msg("Broadcast dispatch loop stopped")

			return
		case msg := <-b.queue:
			b.sink.Broadcast(msg)
		}
	}
}

// drain delivers queued messages until the queue is empty or the grace
// period expires.
func (b *Broadcaster) drain() {
	deadline := time.NewTimer(drainGracePeriod)
	defer deadline.Stop()

	for {
		select {
		case msg := <-b.queue:
			b.sink.Broadcast(msg)
		case <-deadline.C:
			if remaining := len(b.queue); remaining > 0 {
				b.logger.Warn().Int("remaining", remaining).Msg("Drain grace period expired with undelivered broadcasts")
			}

			return
		default:
			return
		}
	}
}
