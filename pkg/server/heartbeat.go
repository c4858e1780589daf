package server

import (
	"time"

	"github.com/biblink/biblink/pkg/protocol"
)

// heartbeatLoop broadcasts a HEARTBEAT envelope with an empty payload to
// every live connection at the configured interval. It starts only once the
// server is started and is joined synchronously when Stop begins, so no
// tick can fire during or after shutdown. Heartbeats are outbound-only and
// bypass the message throttle.
func (s *Server) heartbeatLoop() {
	defer s.heartbeatWG.Done()

	ticker := time.NewTicker(s.config.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.heartbeatStop:
			return
		case <-ticker.C:
			debugLog.Printf("heartbeat tick")
			s.Broadcast(protocol.ActionHeartbeat, nil)
			s.metrics.RecordHeartbeat()
		}
	}
}
