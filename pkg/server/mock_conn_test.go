package server

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockConn is an in-memory conn for unit tests. Frames written by the
// server are recorded; reads block until frames are queued or the conn is
// closed.
type mockConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool

	inbox chan inboundFrame
	done  chan struct{}
}

type inboundFrame struct {
	messageType int
	data        []byte
}

func newMockConn() *mockConn {
	return &mockConn{
		inbox: make(chan inboundFrame, 16),
		done:  make(chan struct{}),
	}
}

// queue makes a frame available to ReadMessage.
func (c *mockConn) queue(messageType int, data []byte) {
	c.inbox <- inboundFrame{messageType: messageType, data: data}
}

// sentFrames returns a copy of all frames written so far.
func (c *mockConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, len(c.sent))
	copy(frames, c.sent)
	return frames
}

func (c *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.inbox:
		return frame.messageType, frame.data, nil
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

func (c *mockConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if messageType == websocket.TextMessage {
		c.sent = append(c.sent, data)
	}
	return nil
}

func (c *mockConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	return nil
}

func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *mockConn) SetPongHandler(h func(string) error) {}

func (c *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}
