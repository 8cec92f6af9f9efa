package ws

import "time"

// Session is the live state attached to one websocket connection. UserID and
// Room stay empty until the client joins a room; a later join overwrites
// both. Nothing here is persisted.
type Session struct {
	ConnID      string
	UserID      string
	Room        string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
