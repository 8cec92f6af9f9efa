package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"roomie-chat/internal/models"
)

// fakeConn records written frames in memory so hub and broker behavior can be
// asserted without real websockets.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	failWrites bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []models.ServerEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ServerEvent, 0, len(c.frames))
	for _, frame := range c.frames {
		var evt models.ServerEvent
		if err := json.Unmarshal(frame, &evt); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		out = append(out, evt)
	}
	return out
}
