package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startTestHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.Eventually(t, func() bool {
		return hub.Registry().SessionsFor(userID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	return ws
}

func liveSessions(r *Registry, userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions[userID]))
	for s := range r.sessions[userID] {
		out = append(out, s)
	}
	return out
}

func TestHubServeDeliversEvents(t *testing.T) {
	hub := NewHub(nil)
	ws := startTestHub(t, hub, "user-1")

	hub.EmitToUser("user-1", Event{Event: "notification:new", Data: map[string]any{"id": "n-1"}})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, ws.ReadJSON(&got))
	require.Equal(t, "notification:new", got.Event)
}

func TestConnectionDeliverAfterCloseReportsFalse(t *testing.T) {
	hub := NewHub(nil)
	startTestHub(t, hub, "user-1")

	// EmitToUser snapshots sessions before delivering, so a session can be
	// closed between the snapshot and the Deliver call. That late Deliver
	// must fail cleanly rather than panic.
	targets := liveSessions(hub.Registry(), "user-1")
	require.Len(t, targets, 1)
	client, ok := targets[0].(*connection)
	require.True(t, ok)

	client.close()
	require.Zero(t, hub.Registry().SessionsFor("user-1"))

	require.NotPanics(t, func() {
		require.False(t, client.Deliver(Event{Event: "notification:updated"}))
	})

	// Closing twice stays harmless.
	require.NotPanics(t, client.close)
}
