package events

import (
	"errors"

	"github.com/carverauto/fleetstream/pkg/logger"
	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
)

var (
	ErrMissingListenAddr     = errors.New("listen_addr is required")
	ErrMissingNATSURL        = errors.New("nats_url is required")
	ErrMissingRegistryURL    = errors.New("registry_url is required")
	ErrMissingDatabaseConfig = errors.New("database configuration is required")
)

const (
	defaultTelemetryConsumerName = "telemetry-consumer"
	defaultEventsConsumerName    = "device-events-consumer"
	defaultLookupTimeoutSeconds  = 5
)

// MonitorConfig configures the monitoring service: the event consumers, the
// enrichment lookup, and the broadcast queue.
type MonitorConfig struct {
	ListenAddr            string                 `json:"listen_addr"`
	NATSURL               string                 `json:"nats_url"`
	StreamName            string                 `json:"stream_name"`
	TelemetryConsumerName string                 `json:"telemetry_consumer_name"`
	EventsConsumerName    string                 `json:"events_consumer_name"`
	RegistryURL           string                 `json:"registry_url"`
	LookupTimeoutSeconds  int                    `json:"lookup_timeout_seconds"`
	BroadcastQueueSize    int                    `json:"broadcast_queue_size"`
	Database              *models.DatabaseConfig `json:"database"`
	Logging               *logger.Config         `json:"logging"`
}

// Validate checks required fields and fills in defaults.
func (c *MonitorConfig) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, ErrMissingListenAddr)
	}

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.RegistryURL == "" {
		errs = append(errs, ErrMissingRegistryURL)
	}

	if c.Database == nil {
		errs = append(errs, ErrMissingDatabaseConfig)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.StreamName == "" {
		c.StreamName = natsutil.DefaultStreamName
	}

	if c.TelemetryConsumerName == "" {
		c.TelemetryConsumerName = defaultTelemetryConsumerName
	}

	if c.EventsConsumerName == "" {
		c.EventsConsumerName = defaultEventsConsumerName
	}

	if c.LookupTimeoutSeconds <= 0 {
		c.LookupTimeoutSeconds = defaultLookupTimeoutSeconds
	}

	return nil
}
