package core

import (
	"errors"

	"github.com/carverauto/fleetstream/pkg/logger"
	"github.com/carverauto/fleetstream/pkg/models"
	"github.com/carverauto/fleetstream/pkg/natsutil"
)

var (
	ErrMissingListenAddr     = errors.New("listen_addr is required")
	ErrMissingNATSURL        = errors.New("nats_url is required")
	ErrMissingDatabaseConfig = errors.New("database configuration is required")
	ErrMissingRedisConfig    = errors.New("redis configuration is required")
)

// Config configures the device management service.
type Config struct {
	ListenAddr string                 `json:"listen_addr"`
	NATSURL    string                 `json:"nats_url"`
	StreamName string                 `json:"stream_name"`
	Database   *models.DatabaseConfig `json:"database"`
	Redis      *models.RedisConfig    `json:"redis"`
	Logging    *logger.Config         `json:"logging"`
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, ErrMissingListenAddr)
	}

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.Database == nil {
		errs = append(errs, ErrMissingDatabaseConfig)
	}

	if c.Redis == nil {
		errs = append(errs, ErrMissingRedisConfig)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.StreamName == "" {
		c.StreamName = natsutil.DefaultStreamName
	}

	return nil
}
