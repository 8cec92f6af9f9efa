package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"roomie-chat/internal/models"
	"roomie-chat/internal/observability"
	"roomie-chat/internal/repositories"
)

// User-facing error strings for the realtime channel.
const (
	errSendFailed    = "Failed to send message"
	errHistoryFailed = "Failed to load chat history"
	errBadFrame      = "Invalid message frame"
)

// ChatWebSocketHandler owns the realtime chat endpoint: it upgrades
// connections, reads client events and routes them through the hub and the
// message store.
type ChatWebSocketHandler struct {
	hub         *Hub
	messageRepo repositories.MessageRepository
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, messageRepo repositories.MessageRepository) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, messageRepo: messageRepo}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the session. Identity and room
// arrive later through a joinRoom event.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("roomie-chat/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	session := Session{
		ConnID:      uuid.NewString(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, session)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	h.publishLifecycle(session, "ws_connect", "")

	go h.readLoop(conn, session)
}

// readLoop consumes frames until the connection dies. Persistence calls run
// on this goroutine, so a slow store stalls only this connection's events.
func (h *ChatWebSocketHandler) readLoop(conn *websocket.Conn, session Session) {
	var closeReason string
	defer func() {
		session = h.lifecycleSession(conn, session)
		h.hub.Unregister(conn)
		observability.DecWSActive("chat")
		observability.IncWSEvent("chat", "ws_disconnect")
		h.publishLifecycle(session, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session = h.lifecycleSession(conn, session)
				observability.IncWSEvent("chat", "ws_error")
				h.publishLifecycle(session, "ws_error", closeReason)
			}
			return
		}

		var evt models.ClientEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			_ = h.hub.SendEvent(conn, models.ServerEvent{Type: models.EventError, Error: errBadFrame})
			continue
		}
		h.dispatch(context.Background(), conn, evt)
	}
}

// dispatch routes one inbound event. Unknown event types are ignored.
func (h *ChatWebSocketHandler) dispatch(ctx context.Context, conn Conn, evt models.ClientEvent) {
	switch evt.Type {
	case models.EventJoinRoom:
		if room := h.hub.Join(conn, evt.UserID, evt.OtherUserID); room != "" {
			log.Printf("user %s joined room %s", evt.UserID, room)
		}
		observability.IncWSEvent("chat", models.EventJoinRoom)
	case models.EventSendMessage:
		h.handleSend(ctx, conn, evt)
	case models.EventLoadHistory:
		h.handleLoadHistory(ctx, conn, evt)
	}
}

func (h *ChatWebSocketHandler) handleSend(ctx context.Context, conn Conn, evt models.ClientEvent) {
	session, ok := h.hub.SessionFor(conn)
	if !ok {
		return
	}

	// The sender identity always comes from the session state set at join
	// time, never from the frame itself.
	msg, err := h.messageRepo.Append(ctx, session.UserID, evt.ToUserID, evt.Content)
	if err != nil {
		log.Printf("send message failed: %v", err)
		observability.IncWSEvent("chat", "send_error")
		reason := errSendFailed
		if repositories.IsValidation(err) {
			reason = err.Error()
		}
		_ = h.hub.SendEvent(conn, models.ServerEvent{Type: models.EventError, Error: reason})
		return
	}

	// Fan-out goes to the room recomputed from (sender, recipient) rather
	// than the session's joined room, so either participant reconnecting
	// under a fresh connection still gets delivery.
	room := RoomKey(msg.SenderID, msg.RecipientID)
	observability.IncWSEvent("chat", models.EventSendMessage)
	h.hub.BroadcastToRoom(room, models.ServerEvent{Type: models.EventReceiveMessage, Message: &msg})
}

func (h *ChatWebSocketHandler) handleLoadHistory(ctx context.Context, conn Conn, evt models.ClientEvent) {
	msgs, err := h.messageRepo.History(ctx, evt.UserID, evt.OtherUserID)
	if err != nil {
		log.Printf("load history failed: %v", err)
		observability.IncWSEvent("chat", "history_error")
		reason := errHistoryFailed
		if repositories.IsValidation(err) {
			reason = err.Error()
		}
		_ = h.hub.SendEvent(conn, models.ServerEvent{Type: models.EventError, Error: reason})
		return
	}
	observability.IncWSEvent("chat", models.EventLoadHistory)
	_ = h.hub.SendEvent(conn, models.ServerEvent{Type: models.EventChatHistory, Messages: msgs})
}

// lifecycleSession returns the live session state for operator events, so
// identity and room set by a join show up in them. Falls back to the
// handshake-time snapshot once the hub entry is gone.
func (h *ChatWebSocketHandler) lifecycleSession(conn Conn, fallback Session) Session {
	if live, ok := h.hub.SessionFor(conn); ok {
		return live
	}
	return fallback
}

func (h *ChatWebSocketHandler) publishLifecycle(session Session, event, reason string) {
	headers := observability.BuildHeaders(session.RequestID, session.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		Service:   "roomie-chat",
		EventType: "ws_events",
		EventName: event,
		Payload:   wsEventPayload(session, event, time.Since(session.ConnectedAt), reason),
	}, headers)
}
