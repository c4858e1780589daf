package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server. A nil *Metrics is
// valid and records nothing, so the server can run unmetered.
type Metrics struct {
	activeConnections prometheus.Gauge
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter

	messagesReceived *prometheus.CounterVec // by action
	messagesSent     *prometheus.CounterVec // by action
	messagesDropped  prometheus.Counter
	decodeErrors     prometheus.Counter

	heartbeats      prometheus.Counter
	broadcastFanout prometheus.Histogram
}

// NewMetrics creates a new metrics instance and registers its collectors
// with the default registry. Call at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		activeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "biblink_active_connections",
				Help: "Current number of connected clients",
			},
		),
		connectionsOpened: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "biblink_connections_opened_total",
				Help: "Total number of client connections accepted",
			},
		),
		connectionsClosed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "biblink_connections_closed_total",
				Help: "Total number of client connections closed",
			},
		),
		messagesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biblink_messages_received_total",
				Help: "Total number of messages received from clients by action",
			},
			[]string{"action"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biblink_messages_sent_total",
				Help: "Total number of messages sent to clients by action",
			},
			[]string{"action"},
		),
		messagesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "biblink_messages_dropped_total",
				Help: "Total number of inbound messages dropped for lack of a handler",
			},
		),
		decodeErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "biblink_decode_errors_total",
				Help: "Total number of inbound messages that failed envelope decoding",
			},
		),
		heartbeats: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "biblink_heartbeats_total",
				Help: "Total number of heartbeat broadcasts",
			},
		),
		broadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "biblink_broadcast_fanout",
				Help:    "Number of clients that received each broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
	}
}

// RecordActiveConnections updates the connected-client gauge.
func (m *Metrics) RecordActiveConnections(count int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

// RecordConnectionOpened increments the accepted-connection counter.
func (m *Metrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
}

// RecordConnectionClosed increments the closed-connection counter.
func (m *Metrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

// RecordMessageReceived increments the received counter for an action.
func (m *Metrics) RecordMessageReceived(action string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(action).Inc()
}

// RecordMessageSent increments the sent counter for an action.
func (m *Metrics) RecordMessageSent(action string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(action).Inc()
}

// RecordMessageDropped increments the dropped-message counter.
func (m *Metrics) RecordMessageDropped() {
	if m == nil {
		return
	}
	m.messagesDropped.Inc()
}

// RecordDecodeError increments the decode-error counter.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// RecordHeartbeat increments the heartbeat counter.
func (m *Metrics) RecordHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

// RecordBroadcastFanout records how many clients received a broadcast.
func (m *Metrics) RecordBroadcastFanout(recipients int) {
	if m == nil {
		return
	}
	m.broadcastFanout.Observe(float64(recipients))
}
