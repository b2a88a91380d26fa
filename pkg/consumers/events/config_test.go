package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
)

func validMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		ListenAddr:  ":8081",
		NATSURL:     "nats://localhost:4222",
		RegistryURL: "http://localhost:8080",
		Database:    &models.DatabaseConfig{Host: "localhost", Database: "fleetstream"},
	}
}

func TestMonitorConfigValidateDefaults(t *testing.T) {
	cfg := validMonitorConfig()

	require.NoError(t, cfg.Validate())

	assert.Equal(t, natsutil.DefaultStreamName, cfg.StreamName)
	assert.Equal(t, defaultTelemetryConsumerName, cfg.TelemetryConsumerName)
	assert.Equal(t, defaultEventsConsumerName, cfg.EventsConsumerName)
	assert.Equal(t, defaultLookupTimeoutSeconds, cfg.LookupTimeoutSeconds)
}

func TestMonitorConfigValidateMissingFields(t *testing.T) {
	cfg := &MonitorConfig{}

	err := cfg.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrMissingListenAddr)
	assert.ErrorIs(t, err, ErrMissingNATSURL)
	assert.ErrorIs(t, err, ErrMissingRegistryURL)
	assert.ErrorIs(t, err, ErrMissingDatabaseConfig)
}

func TestMonitorConfigKeepsExplicitValues(t *testing.T) {
	cfg := validMonitorConfig()
	cfg.StreamName = "CUSTOM_EVENTS"
	cfg.LookupTimeoutSeconds = 30

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "CUSTOM_EVENTS", cfg.StreamName)
	assert.Equal(t, 30, cfg.LookupTimeoutSeconds)
}
