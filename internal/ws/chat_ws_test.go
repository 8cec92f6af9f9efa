package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomie-chat/internal/mocks"
	"roomie-chat/internal/models"
	"roomie-chat/internal/observability"
)

func joinedPair(t *testing.T, hub *Hub) (*fakeConn, *fakeConn) {
	t.Helper()
	sender := &fakeConn{}
	peer := &fakeConn{}
	hub.Register(sender, Session{ConnID: "s"})
	hub.Register(peer, Session{ConnID: "p"})
	hub.Join(sender, "1", "2")
	hub.Join(peer, "2", "1")
	return sender, peer
}

func TestDispatchSendPersistsAndBroadcasts(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	sender, peer := joinedPair(t, hub)

	stored := models.Message{ID: 7, Content: "hi", SenderID: "1", RecipientID: "2", SentAt: time.Now()}
	repo.On("Append", mock.Anything, "1", "2", "hi").Return(stored, nil).Once()

	handler.dispatch(context.Background(), sender, models.ClientEvent{
		Type:     models.EventSendMessage,
		ToUserID: "2",
		Content:  "hi",
	})

	for _, conn := range []*fakeConn{sender, peer} {
		events := conn.events(t)
		require.Len(t, events, 1, "both room members get the message, sender echo included")
		assert.Equal(t, models.EventReceiveMessage, events[0].Type)
		assert.Equal(t, "hi", events[0].Message.Content)
		assert.Equal(t, "1", events[0].Message.SenderID)
		assert.Equal(t, "2", events[0].Message.RecipientID)
	}
	repo.AssertExpectations(t)
}

func TestDispatchSendUsesSessionIdentity(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)

	conn := &fakeConn{}
	hub.Register(conn, Session{ConnID: "c"})
	hub.Join(conn, "9", "2")

	repo.On("Append", mock.Anything, "9", "2", "yo").Return(models.Message{ID: 1, Content: "yo", SenderID: "9", RecipientID: "2"}, nil).Once()

	handler.dispatch(context.Background(), conn, models.ClientEvent{
		Type:     models.EventSendMessage,
		ToUserID: "2",
		Content:  "yo",
	})

	repo.AssertExpectations(t)
}

func TestDispatchSendErrorGoesToSenderOnly(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	sender, peer := joinedPair(t, hub)

	repo.On("Append", mock.Anything, "1", "2", "hi").Return(models.Message{}, assert.AnError).Once()

	handler.dispatch(context.Background(), sender, models.ClientEvent{
		Type:     models.EventSendMessage,
		ToUserID: "2",
		Content:  "hi",
	})

	events := sender.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	assert.Equal(t, "Failed to send message", events[0].Error)
	assert.Empty(t, peer.events(t), "persistence failures are never broadcast")
	repo.AssertExpectations(t)
}

func TestDispatchLoadHistoryRepliesRequesterOnly(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	requester, peer := joinedPair(t, hub)

	history := []models.Message{
		{ID: 1, Content: "hello", SenderID: "1", RecipientID: "2"},
		{ID: 2, Content: "hey", SenderID: "2", RecipientID: "1"},
	}
	repo.On("History", mock.Anything, "1", "2").Return(history, nil).Once()

	handler.dispatch(context.Background(), requester, models.ClientEvent{
		Type:        models.EventLoadHistory,
		UserID:      "1",
		OtherUserID: "2",
	})

	events := requester.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventChatHistory, events[0].Type)
	require.Len(t, events[0].Messages, 2)
	assert.Equal(t, "hello", events[0].Messages[0].Content)
	assert.Empty(t, peer.events(t), "history replay is not broadcast")
	repo.AssertExpectations(t)
}

func TestDispatchLoadHistoryEmptyConversation(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	requester, _ := joinedPair(t, hub)

	repo.On("History", mock.Anything, "1", "5").Return([]models.Message{}, nil).Once()

	handler.dispatch(context.Background(), requester, models.ClientEvent{
		Type:        models.EventLoadHistory,
		UserID:      "1",
		OtherUserID: "5",
	})

	requester.mu.Lock()
	require.Len(t, requester.frames, 1)
	frame := string(requester.frames[0])
	requester.mu.Unlock()
	assert.Contains(t, frame, `"messages":[]`, "an empty conversation still carries an empty list on the wire")

	events := requester.events(t)
	assert.Equal(t, models.EventChatHistory, events[0].Type)
	require.NotNil(t, events[0].Messages)
	assert.Empty(t, events[0].Messages)
	repo.AssertExpectations(t)
}

func TestDispatchLoadHistoryError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	requester, _ := joinedPair(t, hub)

	repo.On("History", mock.Anything, "1", "2").Return(([]models.Message)(nil), assert.AnError).Once()

	handler.dispatch(context.Background(), requester, models.ClientEvent{
		Type:        models.EventLoadHistory,
		UserID:      "1",
		OtherUserID: "2",
	})

	events := requester.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	assert.Equal(t, "Failed to load chat history", events[0].Error)
	repo.AssertExpectations(t)
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)
	conn := &fakeConn{}
	hub.Register(conn, Session{ConnID: "c"})

	handler.dispatch(context.Background(), conn, models.ClientEvent{Type: "typing"})

	assert.Empty(t, conn.events(t))
	repo.AssertExpectations(t)
}

// capturePublisher records operator events published through the
// observability package.
type capturePublisher struct {
	mu        sync.Mutex
	envelopes []observability.EventEnvelope
}

func (p *capturePublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, message.(observability.EventEnvelope))
	return nil
}

func TestLifecycleErrorEventCarriesJoinedIdentity(t *testing.T) {
	publisher := &capturePublisher{}
	observability.SetPublisher(publisher)
	t.Cleanup(func() { observability.SetPublisher(nil) })

	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, new(mocks.MessageRepositoryMock))

	conn := &fakeConn{}
	snapshot := Session{ConnID: "c", ConnectedAt: time.Now()}
	hub.Register(conn, snapshot)
	hub.Join(conn, "1", "2")

	// the read loop publishes with the live session, not the
	// handshake-time snapshot taken before the join
	handler.publishLifecycle(handler.lifecycleSession(conn, snapshot), "ws_error", "read failed")

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.envelopes, 1)
	payload, ok := publisher.envelopes[0].Payload.(map[string]interface{})
	require.True(t, ok)
	identity := payload["identity"].(map[string]interface{})
	wsInfo := payload["ws"].(map[string]interface{})
	assert.Equal(t, "1", identity["user_id"])
	assert.Equal(t, "1-2", wsInfo["room"])
	assert.Equal(t, "read failed", wsInfo["reason"])
}

func TestDispatchSendWithoutSessionIsDropped(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	hub := NewHub()
	handler := NewChatWebSocketHandler(hub, repo)

	// a conn the hub has never seen, e.g. racing a disconnect
	handler.dispatch(context.Background(), &fakeConn{}, models.ClientEvent{
		Type:     models.EventSendMessage,
		ToUserID: "2",
		Content:  "hi",
	})

	repo.AssertExpectations(t)
}
