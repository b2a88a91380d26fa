package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	defaultMaxPullMessages = 10
	defaultPullExpiry      = 5 * time.Second
	defaultAckWait         = 30 * time.Second
	defaultMaxDeliver      = 5
	fetchRetryDelay        = time.Second
)

// Consumer is one durable pull consumer bound to a single subject. Each
// queue is drained by exactly one loop, so ordering within the queue is
// preserved.
type Consumer struct {
	consumer     jetstream.Consumer
	streamName   string
	consumerName string
	logger       zerolog.Logger
}

// NewConsumer creates or looks up the durable consumer for a subject.
func NewConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string, log zerolog.Logger) (*Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		MaxDeliver:    defaultMaxDeliver,
		FilterSubject: subject,
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s on stream %s: %w", consumerName, streamName, err)
	}

	return &Consumer{
		consumer:     consumer,
		streamName:   streamName,
		consumerName: consumerName,
		logger:       log,
	}, nil
}

// ProcessMessages fetches and handles messages until the context is
// canceled. Broker failures are retried with a backoff delay.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("consumer", c.consumerName).Msg("Stopping message processing")
			return
		default:
			msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
			if err != nil {
				c.logger.Error().Err(err).Str("consumer", c.consumerName).Msg("Failed to fetch messages")
				sleepContext(ctx, fetchRetryDelay)

				continue
			}

			for msg := range msgs.Messages() {
				c.handleMessage(ctx, msg, processor)
			}

			if fetchErr := msgs.Error(); fetchErr != nil {
				c.logger.Error().Err(fetchErr).Str("consumer", c.consumerName).Msg("Fetch error")
			}
		}
	}
}

// handleMessage acknowledges only after persistence was attempted. Malformed
// messages are acknowledged immediately so they cannot block the queue;
// transient failures are redelivered up to the delivery cap.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	err := processor.Process(ctx, msg.Subject(), msg.Data())
	if err == nil {
		_ = msg.Ack()
		return
	}

	if errors.Is(err, ErrMalformedMessage) {
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Discarding malformed message")
		_ = msg.Ack()

		return
	}

	metadata, metaErr := msg.Metadata()
	if metaErr == nil && metadata.NumDelivered >= defaultMaxDeliver {
		c.logger.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Uint64("deliveries", metadata.NumDelivered).
			Msg("Delivery cap reached, acknowledging message")
		_ = msg.Ack()

		return
	}

	c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Processing failed, requesting redelivery")
	_ = msg.Nak()
}

// sleepContext waits for the delay or the context, whichever ends first.
func sleepContext(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
