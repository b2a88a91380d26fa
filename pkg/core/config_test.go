package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{
		ListenAddr: ":8080",
		NATSURL:    "nats://localhost:4222",
		Database:   &models.DatabaseConfig{Host: "localhost", Database: "fleetstream"},
		Redis:      &models.RedisConfig{Addr: "localhost:6379"},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, natsutil.DefaultStreamName, cfg.StreamName)
}

func TestConfigValidateMissingFields(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrMissingListenAddr)
	assert.ErrorIs(t, err, ErrMissingNATSURL)
	assert.ErrorIs(t, err, ErrMissingDatabaseConfig)
	assert.ErrorIs(t, err, ErrMissingRedisConfig)
}
