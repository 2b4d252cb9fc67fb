package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensebridge/internal/logging"
)

// dialTestClient stands up a server that registers the upgraded connection in
// the hub and returns the client side of the socket.
func dialTestClient(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.AddConnection(conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("client never registered with the hub")
	}
	return client
}

func TestEmitStampsAndRetains(t *testing.T) {
	h := NewHub(logging.NewNop())

	h.Emit(Event{Type: TypeNotificationSent, EventType: "doorbell", Channel: "haptic"})

	recent := h.Recent()
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Timestamp.IsZero())
	assert.Equal(t, "doorbell", recent[0].EventType)
	assert.Equal(t, uint64(1), h.Counts()[TypeNotificationSent])
}

func TestRecentRingCapped(t *testing.T) {
	h := NewHub(logging.NewNop())

	for i := 0; i < recentCap+25; i++ {
		h.Emit(Event{Type: TypeNotificationSuppressed})
	}
	assert.Len(t, h.Recent(), recentCap)
	assert.Equal(t, uint64(recentCap+25), h.Counts()[TypeNotificationSuppressed])
}

func TestSubscribeReceivesEvents(t *testing.T) {
	h := NewHub(logging.NewNop())

	events, cancel := h.Subscribe()
	defer cancel()

	h.Emit(Event{Type: TypeChannelError, Channel: "visual", Detail: "led fault"})

	select {
	case evt := <-events:
		assert.Equal(t, TypeChannelError, evt.Type)
		assert.Equal(t, "led fault", evt.Detail)
	case <-time.After(time.Second):
		t.Fatal("subscriber got no event")
	}
}

func TestSlowSubscriberNeverBlocksEmit(t *testing.T) {
	h := NewHub(logging.NewNop())

	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.Emit(Event{Type: TypeNotificationSent})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}

func TestClientReceivesTelemetry(t *testing.T) {
	h := NewHub(logging.NewNop())
	client := dialTestClient(t, h)

	h.Emit(Event{Type: TypeSpeechText, Detail: "someone at the door"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, TypeSpeechText, evt.Type)
	assert.Equal(t, "someone at the door", evt.Detail)
}

func TestStalledClientDoesNotBlockEmit(t *testing.T) {
	h := NewHub(logging.NewNop())
	dialTestClient(t, h) // never reads
	require.Equal(t, 1, h.Clients())

	detail := strings.Repeat("x", 256*1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.Emit(Event{Type: TypeNotificationSent, Detail: detail})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a client that stopped reading")
	}

	// a further emit must also return immediately
	start := time.Now()
	h.Emit(Event{Type: TypeNotificationSent})
	assert.Less(t, time.Since(start), time.Second)

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if h.Clients() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stalled client was never disconnected")
}

func TestCancelledSubscriberDropped(t *testing.T) {
	h := NewHub(logging.NewNop())

	events, cancel := h.Subscribe()
	cancel()

	h.Emit(Event{Type: TypeNotificationSent})

	select {
	case <-events:
		t.Fatal("cancelled subscriber still receiving")
	case <-time.After(50 * time.Millisecond):
	}
}
