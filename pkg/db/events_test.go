package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampEventLimit(t *testing.T) {
	assert.Equal(t, defaultEventLimit, clampEventLimit(0))
	assert.Equal(t, defaultEventLimit, clampEventLimit(-5))
	assert.Equal(t, 1, clampEventLimit(1))
	assert.Equal(t, 500, clampEventLimit(500))
	assert.Equal(t, maxEventLimit, clampEventLimit(maxEventLimit))
	assert.Equal(t, maxEventLimit, clampEventLimit(maxEventLimit+1))
}

func TestEventKindTableName(t *testing.T) {
	assert.Equal(t, "telemetry", KindTelemetry.tableName())
	assert.Equal(t, "device_events", KindDeviceEvent.tableName())
}
