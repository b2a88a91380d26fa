package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResolverMemoizesSuccess(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type": "iot_sensor"}`))
	}))
	defer srv.Close()

	resolver := NewDeviceTypeResolver(srv.URL, time.Second, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, "iot_sensor", resolver.Resolve(ctx, 42))
	assert.Equal(t, "iot_sensor", resolver.Resolve(ctx, 42))
	assert.Equal(t, int64(1), hits.Load(), "second resolve must come from the memo")
}

func TestResolverFallsBackOnNotFound(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error": "device not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := NewDeviceTypeResolver(srv.URL, time.Second, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, TypeUnknown, resolver.Resolve(ctx, 404))
	assert.Equal(t, TypeUnknown, resolver.Resolve(ctx, 404))
	assert.Equal(t, int64(2), hits.Load(), "failed lookups are not memoized")
}

func TestResolverFallsBackOnUnreachableRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	resolver := NewDeviceTypeResolver(srv.URL, 100*time.Millisecond, zerolog.Nop())

	assert.Equal(t, TypeUnknown, resolver.Resolve(context.Background(), 1))
}

func TestResolverRequestPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/devices/7/type", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type": "server"}`))
	}))
	defer srv.Close()

	resolver := NewDeviceTypeResolver(srv.URL, time.Second, zerolog.Nop())

	assert.Equal(t, "server", resolver.Resolve(context.Background(), 7))
}
