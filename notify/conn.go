package notify

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrConnClosed indicates a send on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrBufferFull indicates the connection's outbound buffer is full.
	ErrBufferFull = errors.New("connection buffer full")
)

// Conn is a live client connection able to receive messages.
// Send must not block for long. A returned error removes the connection,
// unless it is the sender's context ending.
type Conn interface {
	Send(ctx context.Context, msg Message) error
}

// ChannelConn is a Conn backed by a buffered channel. A transport adapter
// (websocket, SSE, terminal) drains Messages and forwards them to the client.
type ChannelConn struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

var _ Conn = (*ChannelConn)(nil)

// NewChannelConn creates a connection with room for buffer pending messages.
func NewChannelConn(buffer int) *ChannelConn {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelConn{ch: make(chan Message, buffer)}
}

// Send enqueues msg without blocking. It never waits, so ctx is unused.
func (c *ChannelConn) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.ch <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Messages returns the channel of delivered messages.
// It is closed by Close.
func (c *ChannelConn) Messages() <-chan Message {
	return c.ch
}

// Close marks the connection closed. Further sends fail.
func (c *ChannelConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
