package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GuntLondon/noise-box/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// WSConn wraps a websocket with a buffered outbound queue so that
// core fan-out never blocks on a slow peer.
type WSConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *WSConn {
	return &WSConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WSConn) TrySend(f core.Frame) error {
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

func (c *WSConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
