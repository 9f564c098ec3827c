// Package hub fans gateway events out to the UI WebSocket connections of a
// user.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"guardian-gateway/internal/model"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	ID      string
	UserKey string
	Writer  Writer
}

func NewConnection(userKey string, w Writer) *Connection {
	return &Connection{ID: uuid.NewString(), UserKey: userKey, Writer: w}
}

// Event is one message on the UI stream.
type Event struct {
	Type        string `json:"type"`
	Body        any    `json:"body,omitempty"`
	UnreadCount *int64 `json:"unreadCount,omitempty"`
	State       string `json:"state,omitempty"`
}

const (
	EventNotification = "notification"
	EventRealtime     = "realtime"
	EventPong         = "pong"
	EventSession      = "session"
)

type Recorder interface {
	SetUIConnections(n int)
}

type Hub struct {
	recorder Recorder
	logger   *slog.Logger

	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
	count       int
}

func New(recorder Recorder, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		recorder:    recorder,
		logger:      logger,
		connections: make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	if h.connections[conn.UserKey] == nil {
		h.connections[conn.UserKey] = make(map[*Connection]struct{})
	}
	if _, ok := h.connections[conn.UserKey][conn]; !ok {
		h.connections[conn.UserKey][conn] = struct{}{}
		h.count++
	}
	n := h.count
	h.mu.Unlock()
	h.report(n)
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	set := h.connections[conn.UserKey]
	if _, ok := set[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.UserKey)
	}
	h.count--
	n := h.count
	h.mu.Unlock()
	h.report(n)
}

// Count returns the number of open connections for userKey.
func (h *Hub) Count(userKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userKey])
}

func (h *Hub) Broadcast(userKey string, message []byte) {
	h.mu.RLock()
	set := h.connections[userKey]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	h.writeAll(conns, message)
}

// BroadcastAll writes message to every connection of every user.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	conns := make([]*Connection, 0, h.count)
	for _, set := range h.connections {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()
	h.writeAll(conns, message)
}

// CloseAll closes every connection, e.g. after logout.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var conns []*Connection
	for _, set := range h.connections {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.connections = make(map[string]map[*Connection]struct{})
	h.count = 0
	h.mu.Unlock()
	h.report(0)

	for _, c := range conns {
		_ = c.Writer.Close()
	}
}

// PublishNotification sends a merged notification to the user's connections.
func (h *Hub) PublishNotification(userKey string, n model.Notification, unread int64, unreadKnown bool) {
	ev := Event{Type: EventNotification, Body: n}
	if unreadKnown {
		ev.UnreadCount = &unread
	}
	h.publish(userKey, ev)
}

// PublishState tells every connection about a realtime channel state change.
func (h *Hub) PublishState(state string) {
	out, err := json.Marshal(Event{Type: EventRealtime, State: state})
	if err != nil {
		return
	}
	h.BroadcastAll(out)
}

// EndSession tells every connection where to go next and closes them all.
func (h *Hub) EndSession(redirect string) {
	if out, err := json.Marshal(Event{Type: EventSession, Body: map[string]string{"redirect": redirect}}); err == nil {
		h.BroadcastAll(out)
	}
	h.CloseAll()
}

func (h *Hub) publish(userKey string, ev Event) {
	out, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("hub: encode event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}
	h.Broadcast(userKey, out)
}

func (h *Hub) writeAll(conns []*Connection, message []byte) {
	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

func (h *Hub) report(n int) {
	if h.recorder != nil {
		h.recorder.SetUIConnections(n)
	}
}
