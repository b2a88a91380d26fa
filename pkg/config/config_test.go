package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ListenAddr string `json:"listen_addr"`
	NATSURL    string `json:"nats_url"`
}

var errInvalidTestConfig = errors.New("listen_addr is required")

func (c *testConfig) Validate() error {
	if c.ListenAddr == "" {
		return errInvalidTestConfig
	}

	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempConfig(t, `{"listen_addr": ":8080", "nats_url": "nats://localhost:4222"}`)

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoadAndValidateRunsValidation(t *testing.T) {
	path := writeTempConfig(t, `{"nats_url": "nats://localhost:4222"}`)

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, errInvalidTestConfig)
}

func TestLoadAndValidateRejectsNonPointer(t *testing.T) {
	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), "irrelevant.json", cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateMalformedJSON(t *testing.T) {
	path := writeTempConfig(t, `{not json`)

	var cfg testConfig

	err := NewConfig().LoadAndValidate(context.Background(), path, &cfg)
	assert.Error(t, err)
}
