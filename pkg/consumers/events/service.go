package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/fanout"
	"github.com/carverauto/fleetstream/pkg/lifecycle"
	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
)

// Service wires the two durable consumers (telemetry and device events), the
// enrichment resolver, and the broadcast dispatch loop.
type Service struct {
	cfg         *MonitorConfig
	db          db.Service
	hub         *fanout.Hub
	broadcaster *fanout.Broadcaster
	nc          *nats.Conn
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      zerolog.Logger
}

// NewService builds the monitoring service.
func NewService(cfg *MonitorConfig, dbService db.Service, hub *fanout.Hub, broadcaster *fanout.Broadcaster, log zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:         cfg,
		db:          dbService,
		hub:         hub,
		broadcaster: broadcaster,
		logger:      log,
	}, nil
}

// Start connects to the broker, declares the stream topology, and launches
// one receive loop per queue plus the broadcast dispatch loop.
func (s *Service) Start(_ context.Context) error {
	// Background loops outlive the start call; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	nc, err := natsutil.Connect(s.cfg.NATSURL, s.logger)
	if err != nil {
		cancel()
		return err
	}

	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		cancel()

		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	setupCtx, setupCancel := context.WithTimeout(runCtx, 30*time.Second)
	defer setupCancel()

	// Consumer side declares the topology too, so either service can boot
	// first.
	_, err = js.CreateOrUpdateStream(setupCtx, jetstream.StreamConfig{
		Name:      s.cfg.StreamName,
		Subjects:  natsutil.StreamSubjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		cancel()

		return fmt.Errorf("failed to create or get stream %s: %w", s.cfg.StreamName, err)
	}

	resolver := NewDeviceTypeResolver(
		s.cfg.RegistryURL,
		time.Duration(s.cfg.LookupTimeoutSeconds)*time.Second,
		s.logger,
	)
	processor := NewProcessor(s.db, resolver, s.broadcaster, s.logger)

	queues := []struct {
		consumerName string
		subject      string
	}{
		{s.cfg.TelemetryConsumerName, models.SubjectTelemetry},
		{s.cfg.EventsConsumerName, models.SubjectDeviceEvent},
	}

	for _, queue := range queues {
		consumer, err := NewConsumer(setupCtx, js, s.cfg.StreamName, queue.consumerName, queue.subject, s.logger)
		if err != nil {
			nc.Close()
			cancel()

			return err
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			consumer.ProcessMessages(runCtx, processor)
		}()
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.broadcaster.Run(runCtx)
	}()

	s.logger.Info().
		Str("stream", s.cfg.StreamName).
		Msg("Event consumer service started")

	return nil
}

// Stop cancels the receive loops, lets the dispatch loop drain, and releases
// the broker, subscriber, and database resources.
func (s *Service) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.wg.Wait()

	if s.hub != nil {
		s.hub.Close()
	}

	if s.nc != nil {
		s.nc.Close()
	}

	if s.db != nil {
		_ = s.db.Close()
	}

	s.logger.Info().Msg("Event consumer service stopped")

	return nil
}

var _ lifecycle.Service = (*Service)(nil)
