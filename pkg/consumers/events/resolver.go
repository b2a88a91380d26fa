package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// TypeUnknown is the sentinel device type used when enrichment fails.
const TypeUnknown = "other"

// DeviceTypeResolver resolves a device's canonical type against the device
// registry API. Results are memoized per device id and never invalidated
// proactively (a stale type is acceptable); failed lookups are not memoized
// so the next event retries.
type DeviceTypeResolver struct {
	client *resty.Client
	mu     sync.RWMutex
	memo   map[int64]string
	logger zerolog.Logger
}

// NewDeviceTypeResolver builds a resolver with a bounded per-lookup timeout.
func NewDeviceTypeResolver(baseURL string, timeout time.Duration, log zerolog.Logger) *DeviceTypeResolver {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &DeviceTypeResolver{
		client: client,
		memo:   make(map[int64]string),
		logger: log,
	}
}

// Resolve returns the device's type, from the memo when possible. Lookup
// failure falls back to TypeUnknown and never blocks beyond the client
// timeout.
func (r *DeviceTypeResolver) Resolve(ctx context.Context, deviceID int64) string {
	r.mu.RLock()
	deviceType, ok := r.memo[deviceID]
	r.mu.RUnlock()

	if ok {
		return deviceType
	}

	var result struct {
		Type string `json:"type"`
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/api/v1/devices/%d/type", deviceID))
	if err != nil {
		r.logger.Warn().Err(err).Int64("device_id", deviceID).Msg("Device type lookup failed")
		return TypeUnknown
	}

	if !resp.IsSuccess() || result.Type == "" {
		r.logger.Warn().
			Int("status", resp.StatusCode()).
			Int64("device_id", deviceID).
			Msg("Device type lookup returned no type")

		return TypeUnknown
	}

	r.mu.Lock()
	r.memo[deviceID] = result.Type
	r.mu.Unlock()

	r.logger.Debug().Int64("device_id", deviceID).Str("type", result.Type).Msg("Resolved device type")

	return result.Type
}
