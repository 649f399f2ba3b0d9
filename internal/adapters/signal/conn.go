package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// WsSignalConn wraps one WebSocket with a buffered outbound queue.
// It implements core.SignalConn; everything outside this package holds it
// only through that interface.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, sendBuffer int) *WsSignalConn {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames and closes the send channel. The write
// pump drains whatever is already queued (a final admin_kicked must
// reach the client) and closes the underlying socket afterwards.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

func (c *WsSignalConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}
