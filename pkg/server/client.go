package server

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientType identifies what kind of client sits on the other end of a
// connection. Clients assert their type via CMD_REGISTER.
type ClientType string

const (
	ClientTypeUnknown          ClientType = "UNKNOWN"
	ClientTypeBrowserExtension ClientType = "BIBLINK_BROWSER_EXTENSION"
)

// ClientTypeFromString maps a wire clientType value onto the known set.
func ClientTypeFromString(s string) (ClientType, bool) {
	switch ClientType(s) {
	case ClientTypeUnknown:
		return ClientTypeUnknown, true
	case ClientTypeBrowserExtension:
		return ClientTypeBrowserExtension, true
	}
	return ClientTypeUnknown, false
}

// conn is the subset of *websocket.Conn the server relies on. The core
// depends only on this capability surface, which also lets tests substitute
// an in-memory connection.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Client is one live connection plus the metadata it has asserted. The
// metadata lives here, in the directory's side table, not on the transport
// connection itself.
type Client struct {
	ID uint64

	conn    conn
	writeMu sync.Mutex // gorilla allows at most one concurrent writer

	mu         sync.RWMutex // protects clientType and uid
	clientType ClientType
	uid        string

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(id uint64, c conn) *Client {
	return &Client{
		ID:         id,
		conn:       c,
		clientType: ClientTypeUnknown,
		closed:     make(chan struct{}),
	}
}

// Type returns the client type asserted via registration.
func (c *Client) Type() ClientType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientType
}

// UID returns the uid asserted via registration, or "" before registration.
func (c *Client) UID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

func (c *Client) setIdentity(clientType ClientType, uid string) {
	c.mu.Lock()
	c.clientType = clientType
	c.uid = uid
	c.mu.Unlock()
}

// IsOpen reports whether the connection has not been closed by the server.
func (c *Client) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// writeText sends a single text frame, serialized against other writers.
func (c *Client) writeText(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.IsOpen() {
		return net.ErrClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ping sends a transport-level ping frame. WriteControl is safe to call
// concurrently with WriteMessage.
func (c *Client) ping(timeout time.Duration) error {
	if !c.IsOpen() {
		return net.ErrClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Registry is the client directory. It owns the mapping from live
// connections to their metadata: insertion on connect, removal on
// disconnect, first-match lookups by type and uid.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
	nextID  uint64

	metrics *Metrics
}

// NewRegistry creates an empty client directory.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint64]*Client),
		nextID:  1,
	}
}

// SetMetrics attaches metrics to the registry.
func (r *Registry) SetMetrics(metrics *Metrics) {
	r.metrics = metrics
}

// Attach wraps a freshly accepted connection in a Client with default
// metadata (unknown type, empty uid) and adds it to the directory.
func (r *Registry) Attach(c conn) *Client {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	client := newClient(id, c)
	r.clients[id] = client
	count := len(r.clients)
	r.mu.Unlock()

	r.metrics.RecordActiveConnections(count)
	r.metrics.RecordConnectionOpened()

	return client
}

// Remove detaches a client from the directory and closes its connection.
// Removing an unknown ID is a no-op.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, id)
	count := len(r.clients)
	r.mu.Unlock()

	client.close()

	r.metrics.RecordActiveConnections(count)
	r.metrics.RecordConnectionClosed()
}

// Register overwrites a client's metadata in place. Registering the same
// identity again is idempotent.
func (r *Registry) Register(client *Client, clientType ClientType, uid string) {
	client.setIdentity(clientType, uid)
}

// All returns the live clients in attach order.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients
}

// FindByType returns the earliest-attached open client of the given type.
// Duplicate registrations are allowed; iteration in attach order keeps the
// first match deterministic.
func (r *Registry) FindByType(clientType ClientType) (*Client, bool) {
	for _, client := range r.All() {
		if client.IsOpen() && client.Type() == clientType {
			return client, true
		}
	}
	return nil, false
}

// FindByUID returns the earliest-attached open client with the given uid.
func (r *Registry) FindByUID(uid string) (*Client, bool) {
	if uid == "" {
		return nil, false
	}
	for _, client := range r.All() {
		if client.IsOpen() && client.UID() == uid {
			return client, true
		}
	}
	return nil, false
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every connection and empties the directory.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[uint64]*Client)
	r.mu.Unlock()

	for _, client := range clients {
		client.close()
	}

	r.metrics.RecordActiveConnections(0)
}
