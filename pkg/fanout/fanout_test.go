package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/models"
)

type captureSink struct {
	mu       sync.Mutex
	messages []Message
}

func (s *captureSink) Broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
}

func (s *captureSink) all() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Message(nil), s.messages...)
}

func record(id int64) *models.EventRecord {
	return &models.EventRecord{DeviceID: id, EventType: "telemetry"}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	b := New(&captureSink{}, 2, zerolog.Nop())

	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := int64(0); i < 100; i++ {
			b.Enqueue(EventTelemetry, record(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	b := New(&captureSink{}, 2, zerolog.Nop())

	b.Enqueue(EventTelemetry, record(1))
	b.Enqueue(EventTelemetry, record(2))
	b.Enqueue(EventTelemetry, record(3))

	assert.Equal(t, uint64(1), b.Dropped())

	// The survivors are the two most recent messages.
	first := <-b.queue
	second := <-b.queue
	assert.Equal(t, int64(2), first.Data.DeviceID)
	assert.Equal(t, int64(3), second.Data.DeviceID)
}

func TestRunDispatchesInOrder(t *testing.T) {
	sink := &captureSink{}
	b := New(sink, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()

	for i := int64(1); i <= 5; i++ {
		b.Enqueue(EventTelemetry, record(i))
	}

	require.Eventually(t, func() bool {
		return len(sink.all()) == 5
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()

	messages := sink.all()
	for i, msg := range messages {
		assert.Equal(t, int64(i+1), msg.Data.DeviceID)
	}
}

func TestRunDrainsQueuedMessagesOnShutdown(t *testing.T) {
	sink := &captureSink{}
	b := New(sink, 16, zerolog.Nop())

	for i := int64(1); i <= 3; i++ {
		b.Enqueue(EventDeviceEvent, record(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b.Run(ctx)

	assert.Len(t, sink.all(), 3, "queued messages are delivered during the drain grace period")
}
