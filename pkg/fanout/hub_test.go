package fanout

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstream/pkg/models"
)

func dialTestHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()

	conn, cleanup := dialTestHub(t, hub)
	defer cleanup()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(Message{
		Event: EventTelemetry,
		Data:  &models.EventRecord{DeviceID: 42, EventType: "telemetry"},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	var msg Message

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventTelemetry, msg.Event)
	require.NotNil(t, msg.Data)
	assert.Equal(t, int64(42), msg.Data.DeviceID)
}

func TestHubRemovesDisconnectedSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()

	conn, cleanup := dialTestHub(t, hub)
	defer cleanup()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	_ = conn.Close()

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseDisconnectsAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	_, cleanup1 := dialTestHub(t, hub)
	defer cleanup1()

	_, cleanup2 := dialTestHub(t, hub)
	defer cleanup2()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	hub.Close()

	assert.Equal(t, 0, hub.ClientCount())
}
