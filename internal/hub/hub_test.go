package hub

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/evswap/bss-relay/internal/model"
)

func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	waitForSubscribers(t, h, 1)
	return conn
}

func waitForSubscribers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() != want {
		require.False(t, time.Now().After(deadline), "subscriber count never reached %d", want)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	h := NewHub(16, log.New(io.Discard, "", 0))
	conn := dialTestHub(t, h)

	h.Broadcast(model.Event{
		ID:        "evt-1",
		Name:      "swap_result",
		StationID: "station-2",
		Data:      map[string]any{"status": "success"},
		EmittedAt: "2026-03-14T09:30:00Z",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		ID        string         `json:"event_id"`
		Name      string         `json:"event"`
		StationID string         `json:"station_id"`
		Data      map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, "evt-1", event.ID)
	require.Equal(t, "swap_result", event.Name)
	require.Equal(t, "station-2", event.StationID)
	require.Equal(t, "success", event.Data["status"])
}

func TestSlowSubscriberIsDroppedWithoutBlockingOthers(t *testing.T) {
	h := NewHub(1, log.New(io.Discard, "", 0))

	conn := dialTestHub(t, h)

	// A stuck subscriber with a full send buffer, registered directly: its
	// pumps are intentionally not running.
	stuck := &client{id: "stuck", send: make(chan []byte, 1)}
	stuck.send <- []byte("backlog")
	h.mu.Lock()
	h.clients[stuck.id] = stuck
	h.mu.Unlock()
	waitForSubscribers(t, h, 2)

	h.Broadcast(model.Event{ID: "evt-2", Name: "auth_response", StationID: "station-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), "evt-2")

	waitForSubscribers(t, h, 1)
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	h := NewHub(16, log.New(io.Discard, "", 0))
	conn := dialTestHub(t, h)

	h.Close()
	waitForSubscribers(t, h, 0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
