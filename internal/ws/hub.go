package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomie-chat/internal/models"
	"roomie-chat/internal/observability"
)

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// in-memory fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub owns the live sessions and their room membership. All state is in
// memory and rebuilt from scratch when connections re-establish.
type Hub struct {
	mu       sync.RWMutex
	sessions map[Conn]*Session
	rooms    map[string]map[Conn]bool
	writeMus map[Conn]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[Conn]*Session),
		rooms:    make(map[string]map[Conn]bool),
		writeMus: make(map[Conn]*sync.Mutex),
	}
}

// Register creates a session for a freshly established connection. The
// session has no identity or room until the client joins.
func (h *Hub) Register(conn Conn, session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := session
	h.sessions[conn] = &s
	h.writeMus[conn] = &sync.Mutex{}
}

// Join sets the session's identity and subscribes the connection to the room
// derived from the two participants. A repeat join overwrites the previous
// identity and room; the last join wins. Unknown connections are a no-op so a
// late join racing a disconnect cannot fault.
func (h *Hub) Join(conn Conn, userID, otherUserID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[conn]
	if !ok {
		return ""
	}

	room := RoomKey(userID, otherUserID)
	if session.Room != "" && session.Room != room {
		h.removeFromRoom(session.Room, conn)
	}
	session.UserID = userID
	session.Room = room

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[Conn]bool)
	}
	h.rooms[room][conn] = true
	return room
}

// Unregister drops the session and its room membership. Safe to call for
// connections the hub has never seen.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, ok := h.sessions[conn]; ok && session.Room != "" {
		h.removeFromRoom(session.Room, conn)
	}
	delete(h.sessions, conn)
	delete(h.writeMus, conn)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(room string, conn Conn) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Members returns the connections currently subscribed to a room.
func (h *Hub) Members(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	return conns
}

// SessionFor returns a snapshot of the session bound to a connection.
func (h *Hub) SessionFor(conn Conn) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if session, ok := h.sessions[conn]; ok {
		return *session, true
	}
	return Session{}, false
}

// SendEvent writes one event frame to a single connection. Writes to the same
// connection are serialized; gorilla connections do not allow concurrent
// writers and broadcasts originate from many reader goroutines.
func (h *Hub) SendEvent(conn Conn, event models.ServerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	mu := h.writeMus[conn]
	h.mu.RUnlock()
	if mu == nil {
		return nil
	}

	mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	mu.Unlock()
	if err != nil {
		log.Printf("websocket write error: %v", err)
		h.evict(conn, err)
	}
	return err
}

// BroadcastToRoom delivers an event to every session subscribed to the room,
// the originator included.
func (h *Hub) BroadcastToRoom(room string, event models.ServerEvent) {
	for _, conn := range h.Members(room) {
		_ = h.SendEvent(conn, event)
	}
}

// evict closes and unregisters a connection whose write failed.
func (h *Hub) evict(conn Conn, cause error) {
	session, known := h.SessionFor(conn)
	conn.Close()
	h.Unregister(conn)
	if !known {
		return
	}

	observability.IncWSEvent("chat", "ws_error")
	headers := observability.BuildHeaders(session.RequestID, session.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		Service:   "roomie-chat",
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload(session, "ws_error", time.Since(session.ConnectedAt), cause.Error()),
	}, headers)
}

// wsEventPayload builds the operator-event payload shared by connect,
// disconnect and error events.
func wsEventPayload(session Session, event string, connected time.Duration, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "chat",
			"room":        session.Room,
			"event":       event,
			"conn_id":     session.ConnID,
			"duration_ms": connected.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   session.UserID,
			"device_id": session.DeviceID,
			"ip":        session.IP,
		},
	}
}
