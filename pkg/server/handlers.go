package server

import (
	"encoding/json"
	"log"

	"github.com/biblink/biblink/pkg/protocol"
)

// HandlerFunc processes one inbound envelope from a client. Handlers run
// under the concurrency throttle and are expected to be fast; they may call
// the messaging API and the client directory.
type HandlerFunc func(client *Client, payload json.RawMessage)

// buildHandlers populates the action registry once at construction.
// HEARTBEAT and INFO_CONFIGURATION are outbound-only and deliberately
// unmapped.
func (s *Server) buildHandlers() map[protocol.Action]HandlerFunc {
	return map[protocol.Action]HandlerFunc{
		protocol.ActionCmdRegister:                   s.handleRegister,
		protocol.ActionInfoMessage:                   s.handleInfoMessage,
		protocol.ActionInfoCitationCounts:            s.handleCitationCounts,
		protocol.ActionInfoCitationCountsInterrupted: s.handleCitationCountsInterrupted,
	}
}

// dispatch routes a decoded envelope to its registered handler. Envelopes
// without a handler are logged and dropped; dispatch never propagates a
// failure to the read loop.
func (s *Server) dispatch(client *Client, env *protocol.Envelope) {
	handler, ok := s.handlers[env.Action]
	if !ok {
		s.metrics.RecordMessageDropped()
		log.Printf("client %d: no handler for action %s, dropping", client.ID, env.Action)
		return
	}
	handler(client, env.Payload)
}

// handleRegister records the identity a client asserts. Duplicate
// registrations are accepted; lookups resolve to the earliest-attached
// match.
func (s *Server) handleRegister(client *Client, payload json.RawMessage) {
	var msg protocol.RegisterPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("client %d: invalid CMD_REGISTER payload: %v", client.ID, err)
		return
	}

	clientType, ok := ClientTypeFromString(msg.ClientType)
	if !ok {
		log.Printf("client %d: CMD_REGISTER with unknown client type %q, ignoring", client.ID, msg.ClientType)
		return
	}

	s.registry.Register(client, clientType, msg.ClientUID)
	log.Printf("client %d registered as %s (uid %q)", client.ID, clientType, msg.ClientUID)
}

func (s *Server) handleInfoMessage(client *Client, payload json.RawMessage) {
	var msg protocol.InfoMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("client %d: invalid INFO_MESSAGE payload: %v", client.ID, err)
		return
	}

	log.Printf("client %d: [%s] %s", client.ID, msg.MessageType, msg.Message)
}

// handleCitationCounts persists citation counts pushed by the extension.
func (s *Server) handleCitationCounts(client *Client, payload json.RawMessage) {
	var msg protocol.CitationCountsPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("client %d: invalid citation counts payload: %v", client.ID, err)
		return
	}

	if s.citations == nil {
		log.Printf("client %d: received %d citation counts (no store attached, discarding)", client.ID, len(msg.CitationCounts))
		return
	}

	stored := 0
	for _, cc := range msg.CitationCounts {
		if cc.EntryID == "" {
			debugLog.Printf("client %d: citation count without entry id, skipping", client.ID)
			continue
		}
		if err := s.citations.UpsertCitationCount(cc.EntryID, cc.CitationCount, cc.CitationCountURL); err != nil {
			log.Printf("client %d: failed to store citation count for %s: %v", client.ID, cc.EntryID, err)
			continue
		}
		stored++
	}

	log.Printf("client %d: stored %d/%d citation counts", client.ID, stored, len(msg.CitationCounts))
}

func (s *Server) handleCitationCountsInterrupted(client *Client, payload json.RawMessage) {
	log.Printf("client %d: citation count fetch was interrupted", client.ID)
}
