package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/models"
)

// fakeMsg implements jetstream.Msg and records the ack decision.
type fakeMsg struct {
	subject   string
	data      []byte
	delivered uint64

	acked bool
	naked bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.delivered}, nil
}

func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Headers() nats.Header { return nil }
func (m *fakeMsg) Subject() string      { return m.subject }
func (m *fakeMsg) Reply() string        { return "" }

func (m *fakeMsg) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeMsg) DoubleAck(context.Context) error {
	m.acked = true
	return nil
}

func (m *fakeMsg) Nak() error {
	m.naked = true
	return nil
}

func (m *fakeMsg) NakWithDelay(time.Duration) error {
	m.naked = true
	return nil
}

func (m *fakeMsg) InProgress() error           { return nil }
func (m *fakeMsg) Term() error                 { return nil }
func (m *fakeMsg) TermWithReason(string) error { return nil }

func newHandleMessageFixture(store *fakeEventStore) (*Consumer, *Processor) {
	consumer := &Consumer{
		streamName:   "events",
		consumerName: "telemetry-consumer",
		logger:       zerolog.Nop(),
	}
	processor, _ := newTestProcessor(store, nil)

	return consumer, processor
}

func TestHandleMessageAcksOnSuccess(t *testing.T) {
	store := &fakeEventStore{}
	consumer, processor := newHandleMessageFixture(store)

	msg := &fakeMsg{
		subject:   models.SubjectTelemetry,
		data:      []byte(`{"device_id": 1, "data": {"temperature": 21.0}}`),
		delivered: 1,
	}

	consumer.handleMessage(context.Background(), msg, processor)

	assert.True(t, msg.acked)
	assert.False(t, msg.naked)
	require.Len(t, store.records, 1)
}

func TestHandleMessageAcksMalformed(t *testing.T) {
	store := &fakeEventStore{}
	consumer, processor := newHandleMessageFixture(store)

	msg := &fakeMsg{subject: models.SubjectTelemetry, delivered: 1}

	consumer.handleMessage(context.Background(), msg, processor)

	assert.True(t, msg.acked, "malformed messages must not block the queue")
	assert.False(t, msg.naked)
	assert.Empty(t, store.records)
}

func TestHandleMessageNaksTransientFailure(t *testing.T) {
	store := &fakeEventStore{err: assert.AnError}
	consumer, processor := newHandleMessageFixture(store)

	msg := &fakeMsg{
		subject:   models.SubjectTelemetry,
		data:      []byte(`{"device_id": 1}`),
		delivered: 1,
	}

	consumer.handleMessage(context.Background(), msg, processor)

	assert.True(t, msg.naked, "a store failure below the delivery cap is redelivered")
	assert.False(t, msg.acked)
}

func TestHandleMessageAcksAtDeliveryCap(t *testing.T) {
	store := &fakeEventStore{err: assert.AnError}
	consumer, processor := newHandleMessageFixture(store)

	msg := &fakeMsg{
		subject:   models.SubjectTelemetry,
		data:      []byte(`{"device_id": 1}`),
		delivered: defaultMaxDeliver,
	}

	consumer.handleMessage(context.Background(), msg, processor)

	assert.True(t, msg.acked, "the delivery cap stops the redelivery loop")
	assert.False(t, msg.naked)
}
