package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sensebridge/internal/logging"
)

// Telemetry event types surfaced to the GUI and logging collaborators.
const (
	TypeNotificationSent       = "notification_sent"
	TypeNotificationSuppressed = "notification_suppressed"
	TypeChannelError           = "channel_error"
	TypeSpeechText             = "speech_text"
)

// Event is one structured observability record.
type Event struct {
	Type      string    `json:"type"`
	EventType string    `json:"event_type,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	recentCap      = 200
	maxWSClients   = 10
	wsSendBuffer   = 64
	wsWriteTimeout = 2 * time.Second
)

// wsClient pairs a connection with its outbound buffer. All socket writes
// happen on the client's own writer goroutine so the hub never waits on a
// peer's TCP window.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans telemetry events out to in-process subscribers and connected
// WebSocket clients, and keeps a ring of recent events for the status API.
type Hub struct {
	mu     sync.Mutex
	recent []Event
	subs   map[chan Event]struct{}
	conns  map[*websocket.Conn]*wsClient
	counts map[string]uint64
	logger *logging.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		conns:  make(map[*websocket.Conn]*wsClient),
		counts: make(map[string]uint64),
		logger: logger,
	}
}

// Emit records an event and pushes it to all subscribers and clients.
// Never blocks: a slow subscriber misses events and a stalled client is
// disconnected instead of stalling a channel loop.
func (h *Hub) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[evt.Type]++
	h.recent = append(h.recent, evt)
	if len(h.recent) > recentCap {
		h.recent = h.recent[1:]
	}

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}

	if len(h.conns) > 0 {
		payload, err := json.Marshal(evt)
		if err != nil {
			h.logger.Errorf("Marshal telemetry event failed: %v", err)
			return
		}
		for conn, client := range h.conns {
			select {
			case client.send <- payload:
			default:
				h.logger.Warnf("Telemetry client not keeping up, dropping connection")
				delete(h.conns, conn)
				close(client.send)
				_ = conn.Close()
			}
		}
	}
}

// writeLoop drains one client's buffer onto its socket. Each write carries a
// deadline; a client that stops reading is disconnected, not waited on.
func (h *Hub) writeLoop(client *wsClient) {
	for payload := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to push telemetry to client: %v", err)
			_ = client.conn.Close()
			h.RemoveConnection(client.conn)
			return
		}
	}
}

// Subscribe registers an in-process consumer. The returned cancel func must
// be called when done.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// AddConnection registers a WebSocket client for live telemetry.
func (h *Hub) AddConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) >= maxWSClients {
		h.logger.Warnf("Max telemetry clients reached, rejecting connection")
		_ = conn.Close()
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.conns[conn] = client
	go h.writeLoop(client)
	h.logger.Infof("Telemetry client connected (total: %d)", len(h.conns))
}

// RemoveConnection drops a WebSocket client and stops its writer.
func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(client.send)
		h.logger.Infof("Telemetry client disconnected (remaining: %d)", len(h.conns))
	}
}

// Clients reports how many WebSocket clients are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Recent returns a copy of the retained event ring, newest last.
func (h *Hub) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.recent))
	copy(out, h.recent)
	return out
}

// Counts returns per-type emission counters.
func (h *Hub) Counts() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}
