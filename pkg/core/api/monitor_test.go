package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/db"
	"github.com/carverauto/fleetstream/pkg/models"
)

type fakeEventQuerier struct {
	records []*models.EventRecord
	stats   *models.EventStats
	purged  int64
	err     error

	lastKind   db.EventKind
	lastFilter db.EventFilter
	lastCutoff time.Time
}

func (f *fakeEventQuerier) QueryEvents(_ context.Context, kind db.EventKind, filter db.EventFilter) ([]*models.EventRecord, error) {
	f.lastKind = kind
	f.lastFilter = filter

	return f.records, f.err
}

func (f *fakeEventQuerier) EventStats(_ context.Context, kind db.EventKind) (*models.EventStats, error) {
	f.lastKind = kind

	return f.stats, f.err
}

func (f *fakeEventQuerier) PurgeEventsOlderThan(_ context.Context, kind db.EventKind, cutoff time.Time) (int64, error) {
	f.lastKind = kind
	f.lastCutoff = cutoff

	return f.purged, f.err
}

type fakeSubscriber struct{ served bool }

func (f *fakeSubscriber) ServeWS(w http.ResponseWriter, _ *http.Request) {
	f.served = true
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func newTestMonitorServer(store *fakeEventQuerier) (*MonitorServer, *fakeSubscriber) {
	sub := &fakeSubscriber{}

	return NewMonitorServer(store, sub, zerolog.Nop()), sub
}

func TestQueryTelemetryWithFilters(t *testing.T) {
	store := &fakeEventQuerier{
		records: []*models.EventRecord{{ID: "a", DeviceID: 42, EventType: "telemetry"}},
	}
	srv, _ := newTestMonitorServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry?device_id=42&device_type=iot_sensor&limit=10", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.KindTelemetry, store.lastKind)
	require.NotNil(t, store.lastFilter.DeviceID)
	assert.Equal(t, int64(42), *store.lastFilter.DeviceID)
	assert.Equal(t, "iot_sensor", store.lastFilter.DeviceType)
	assert.Equal(t, 10, store.lastFilter.Limit)

	var records []*models.EventRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, int64(42), records[0].DeviceID)
}

func TestQueryEventsTargetsDeviceEvents(t *testing.T) {
	store := &fakeEventQuerier{}
	srv, _ := newTestMonitorServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?event_type=status_change", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.KindDeviceEvent, store.lastKind)
	assert.Equal(t, "status_change", store.lastFilter.EventType)
	assert.JSONEq(t, "[]", rec.Body.String(), "an empty result set is an empty array, not null")
}

func TestQueryInvalidDeviceID(t *testing.T) {
	srv, _ := newTestMonitorServer(&fakeEventQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry?device_id=forty-two", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	store := &fakeEventQuerier{
		stats: &models.EventStats{TotalCount: 12, DeviceCount: 2, Devices: []int64{1, 2}},
	}
	srv, _ := newTestMonitorServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry/stats", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.EventStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(12), stats.TotalCount)
	assert.Equal(t, []int64{1, 2}, stats.Devices)
}

func TestPurgeDefaultsToThirtyDays(t *testing.T) {
	store := &fakeEventQuerier{purged: 5}
	srv, _ := newTestMonitorServer(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.KindDeviceEvent, store.lastKind)

	expected := time.Now().UTC().AddDate(0, 0, -defaultPurgeDays)
	assert.WithinDuration(t, expected, store.lastCutoff, time.Minute)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["deleted"])
	assert.Equal(t, float64(defaultPurgeDays), body["days"])
}

func TestPurgeRejectsBadDays(t *testing.T) {
	store := &fakeEventQuerier{}
	srv, _ := newTestMonitorServer(store)

	for _, days := range []string{"0", "-3", "soon"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/telemetry?days="+days, nil)
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s must be rejected", days)
	}
}

func TestWebSocketRouteDelegatesToHub(t *testing.T) {
	srv, sub := newTestMonitorServer(&fakeEventQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.True(t, sub.served)
}

func TestMonitorHealth(t *testing.T) {
	srv, _ := newTestMonitorServer(&fakeEventQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
