package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceKey(t *testing.T) {
	assert.Equal(t, "device:42", DeviceKey(42))
	assert.Equal(t, "device:1", DeviceKey(1))
}
