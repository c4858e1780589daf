// Package server implements the BibLink websocket server: a small,
// persistent local server that keeps reference-manager browser extensions
// connected, dispatches their messages to registered handlers under a
// concurrency throttle, and broadcasts periodic heartbeats.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biblink/biblink/pkg/protocol"
	"github.com/biblink/biblink/pkg/store"
)

// serverState is the lifecycle state machine. Starting and Stopping are
// transient guards preventing concurrent start/stop attempts.
type serverState int

const (
	stateUninitialized serverState = iota
	stateStarting
	stateStarted
	stateStopping
	stateStopped
)

func (s serverState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateStarting:
		return "starting"
	case stateStarted:
		return "started"
	case stateStopping:
		return "stopping"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	// shutdownGrace bounds how long Stop waits for the transport to drain.
	shutdownGrace = 1 * time.Second

	// writeTimeout bounds every individual frame write.
	writeTimeout = 10 * time.Second
)

var debugLog = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime|log.Lmicroseconds)

// EnableDebugLogging routes per-frame debug output to stderr. It applies to
// every server in the process; call it before starting one.
func EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.Ldate|log.Ltime|log.Lmicroseconds)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser extensions connect with extension-scheme origins that
		// vary per browser and per install.
		return true
	},
}

// Server coordinates bidirectional, addressed, and broadcast messaging with
// a set of websocket clients. It is explicitly constructed and owned by the
// embedding application; create one per process.
type Server struct {
	config    Config
	registry  *Registry
	throttle  *Throttle
	handlers  map[protocol.Action]HandlerFunc
	citations *store.DB
	metrics   *Metrics

	stateMu sync.Mutex
	state   serverState

	listener   net.Listener
	httpServer *http.Server

	// ctx gates permit waits; cancelled when Stop begins.
	ctx    context.Context
	cancel context.CancelFunc

	heartbeatStop chan struct{}
	heartbeatWG   sync.WaitGroup
	wg            sync.WaitGroup
}

// NewServer creates a server with the given configuration. The heartbeat
// settings in config are fixed for the server's lifetime.
func NewServer(config Config) *Server {
	s := &Server{
		config:   config,
		registry: NewRegistry(),
		throttle: NewThrottle(config.MaxParallelMessages),
		state:    stateUninitialized,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.handlers = s.buildHandlers()
	return s
}

// SetMetrics attaches metrics to the server. Call before Start.
func (s *Server) SetMetrics(metrics *Metrics) {
	s.metrics = metrics
	s.registry.SetMetrics(metrics)
}

// SetCitationStore attaches the citation count store. Without one, received
// citation counts are logged and discarded.
func (s *Server) SetCitationStore(db *store.DB) {
	s.citations = db
}

// Registry returns the client directory.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the bound listen address, or "" while not started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) setState(state serverState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

func (s *Server) isStarted() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state == stateStarted
}

// Start binds the listener and begins accepting connections. It returns
// false, with a log line, when the server is already starting or started,
// or when the bind fails. On success the heartbeat scheduler starts if
// enabled.
func (s *Server) Start() bool {
	s.stateMu.Lock()
	switch s.state {
	case stateStarting:
		s.stateMu.Unlock()
		log.Printf("server is already starting")
		return false
	case stateStarted:
		s.stateMu.Unlock()
		log.Printf("server has already been started")
		return false
	}
	s.state = stateStarting
	s.stateMu.Unlock()

	log.Printf("server is starting up...")

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("failed to listen on %s: %v", addr, err)
		s.setState(stateStopped)
		return false
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{Handler: mux}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.serveLoop()

	s.setState(stateStarted)
	log.Printf("server has started on %s", listener.Addr())

	if s.config.HeartbeatEnabled {
		s.heartbeatStop = make(chan struct{})
		s.heartbeatWG.Add(1)
		go s.heartbeatLoop()
		log.Printf("heartbeat enabled (interval %v)", s.config.HeartbeatInterval())
	} else {
		log.Printf("heartbeat disabled")
	}

	return true
}

// Stop shuts the server down: the heartbeat scheduler is cancelled
// synchronously, the transport is closed with a bounded grace period, and
// remaining connections are dropped. It returns false, with a log line,
// when the server is still starting or not started.
func (s *Server) Stop() bool {
	s.stateMu.Lock()
	switch s.state {
	case stateStarting:
		s.stateMu.Unlock()
		log.Printf("server is currently starting up and cannot be stopped during this process")
		return false
	case stateStarted:
		s.state = stateStopping
		s.stateMu.Unlock()
	default:
		s.stateMu.Unlock()
		log.Printf("server is not started")
		return false
	}

	log.Printf("stopping server...")

	// No heartbeat tick may fire once Stop has begun.
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatWG.Wait()
		s.heartbeatStop = nil
	}

	// Abandon messages still waiting on a permit.
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("transport shutdown: %v", err)
		s.httpServer.Close()
	}

	// Shutdown does not track hijacked websocket connections.
	s.registry.CloseAll()

	s.wg.Wait()
	s.listener = nil

	s.setState(stateStopped)
	log.Printf("server stopped")
	return true
}

func (s *Server) serveLoop() {
	defer s.wg.Done()

	if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		log.Printf("transport error: %v", err)
	}
}

// handleWebSocket upgrades an HTTP request, attaches the connection to the
// directory with default metadata, and sends the welcome and configuration
// frames before entering the read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.isStarted() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := s.registry.Attach(ws)
	log.Printf("client %d connected from %s", client.ID, ws.RemoteAddr())

	s.Send(client, protocol.ActionInfoMessage, protocol.InfoMessagePayload{
		MessageType: "info",
		Message:     "welcome!",
	})
	s.Send(client, protocol.ActionInfoConfiguration, protocol.ConfigurationPayload{
		ConnectionLostTimeout:    s.config.ConnectionLostTimeout().Milliseconds(),
		HeartbeatEnabled:         s.config.HeartbeatEnabled,
		HeartbeatInterval:        s.config.HeartbeatInterval().Milliseconds(),
		HeartbeatToleranceFactor: s.config.HeartbeatToleranceFactor,
	})

	s.wg.Add(2)
	go s.readLoop(client)
	go s.pingLoop(client)
}

// readLoop reads frames from one connection until it errors or closes.
// Binary frames are observed and dropped; text frames enter the throttled
// message path.
func (s *Server) readLoop(client *Client) {
	defer s.wg.Done()
	defer s.registry.Remove(client.ID)

	timeout := s.config.ConnectionLostTimeout()
	if timeout > 0 {
		client.conn.SetReadDeadline(time.Now().Add(timeout))
		client.conn.SetPongHandler(func(string) error {
			return client.conn.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	for {
		messageType, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debugLog.Printf("client %d read error: %v", client.ID, err)
			}
			log.Printf("client %d disconnected", client.ID)
			return
		}

		if timeout > 0 {
			client.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		if messageType != websocket.TextMessage {
			debugLog.Printf("client %d sent non-text frame (type %d, %d bytes), ignoring", client.ID, messageType, len(data))
			continue
		}

		s.processMessage(client, data)
	}
}

// processMessage gates one inbound frame through the throttle, decodes it,
// and dispatches it. Every failure is logged and dropped; nothing here may
// kill the read loop.
func (s *Server) processMessage(client *Client, data []byte) {
	permit, err := s.throttle.Acquire(s.ctx)
	if err != nil {
		log.Printf("client %d: message abandoned while waiting for a permit: %v", client.ID, err)
		return
	}
	defer permit.Release()

	env, err := protocol.Decode(data)
	if err != nil {
		s.metrics.RecordDecodeError()
		log.Printf("client %d: dropping malformed message: %v", client.ID, err)
		return
	}

	s.metrics.RecordMessageReceived(string(env.Action))
	debugLog.Printf("client %d ← RECV: %s (%d bytes)", client.ID, env.Action, len(data))

	s.dispatch(client, env)
}

// pingLoop keeps the transport-level liveness check alive: pings go out at
// a fraction of the connection-lost timeout, and a missed pong lets the
// read deadline expire.
func (s *Server) pingLoop(client *Client) {
	defer s.wg.Done()

	timeout := s.config.ConnectionLostTimeout()
	if timeout <= 0 {
		return
	}

	interval := time.Duration(float64(timeout) * s.config.HeartbeatToleranceFactor)
	if interval <= 0 {
		interval = timeout / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-client.closed:
			return
		case <-ticker.C:
			if err := client.ping(writeTimeout); err != nil {
				debugLog.Printf("client %d ping failed: %v", client.ID, err)
				s.registry.Remove(client.ID)
				return
			}
		}
	}
}

// Send delivers one envelope to a single client. The send is attempted only
// while the server is started and the connection is open; the return value
// reports whether it was attempted successfully.
func (s *Server) Send(client *Client, action protocol.Action, payload any) bool {
	if client == nil || !s.isStarted() || !client.IsOpen() {
		return false
	}

	data, err := protocol.Encode(action, payload)
	if err != nil {
		log.Printf("client %d: failed to encode %s: %v", client.ID, action, err)
		return false
	}

	if err := client.writeText(data, writeTimeout); err != nil {
		debugLog.Printf("client %d: send %s failed: %v", client.ID, action, err)
		return false
	}

	s.metrics.RecordMessageSent(string(action))
	debugLog.Printf("client %d → SEND: %s", client.ID, action)
	return true
}

// SendToType sends to the first live client of the given type, returning
// false when no such client exists.
func (s *Server) SendToType(clientType ClientType, action protocol.Action, payload any) bool {
	client, ok := s.registry.FindByType(clientType)
	if !ok {
		return false
	}
	return s.Send(client, action, payload)
}

// SendToUID sends to the first live client with the given uid, returning
// false when no such client exists.
func (s *Server) SendToUID(uid string, action protocol.Action, payload any) bool {
	client, ok := s.registry.FindByUID(uid)
	if !ok {
		return false
	}
	return s.Send(client, action, payload)
}

// Broadcast sends one envelope to every live connection. A failed send to
// one client never aborts delivery to the rest.
func (s *Server) Broadcast(action protocol.Action, payload any) {
	delivered := 0
	for _, client := range s.registry.All() {
		if s.Send(client, action, payload) {
			delivered++
		}
	}
	s.metrics.RecordBroadcastFanout(delivered)
}
