package models

// Inbound event types accepted on the chat websocket.
const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventLoadHistory = "loadHistory"
)

// Outbound event types pushed to chat websocket clients.
const (
	EventReceiveMessage = "receiveMessage"
	EventChatHistory    = "chatHistory"
	EventError          = "error"
)

// ClientEvent is a frame received from a websocket client. Which fields are
// meaningful depends on Type: joinRoom/loadHistory carry userId+otherUserId,
// sendMessage carries content+toUserId.
type ClientEvent struct {
	Type        string `json:"type"`
	UserID      string `json:"userId,omitempty"`
	OtherUserID string `json:"otherUserId,omitempty"`
	ToUserID    string `json:"toUserId,omitempty"`
	Content     string `json:"content,omitempty"`
}

// ServerEvent is a frame pushed to websocket clients. Messages carries no
// omitempty: an empty conversation replays as an empty list, which clients
// iterate without a presence check.
type ServerEvent struct {
	Type     string    `json:"type"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error,omitempty"`
}
