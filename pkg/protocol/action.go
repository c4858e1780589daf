package protocol

// Action identifies the kind of message carried by an envelope. The set is
// closed: Decode rejects anything not listed here.
type Action string

const (
	// ActionCmdRegister is sent by a client to assert its type and uid.
	ActionCmdRegister Action = "CMD_REGISTER"
	// ActionInfoMessage carries a free-form informational message in either
	// direction.
	ActionInfoMessage Action = "INFO_MESSAGE"
	// ActionInfoCitationCounts delivers citation counts fetched by a client.
	ActionInfoCitationCounts Action = "INFO_GOOGLE_SCHOLAR_CITATION_COUNTS"
	// ActionInfoCitationCountsInterrupted signals that a client aborted a
	// citation count fetch.
	ActionInfoCitationCountsInterrupted Action = "INFO_FETCH_GOOGLE_SCHOLAR_CITATION_COUNTS_INTERRUPTED"
	// ActionInfoConfiguration tells a freshly connected client how liveness
	// is configured. Outbound only.
	ActionInfoConfiguration Action = "INFO_CONFIGURATION"
	// ActionHeartbeat is the periodic liveness broadcast. Outbound only.
	ActionHeartbeat Action = "HEARTBEAT"
)

// Valid reports whether a is part of the recognized action set.
func (a Action) Valid() bool {
	switch a {
	case ActionCmdRegister,
		ActionInfoMessage,
		ActionInfoCitationCounts,
		ActionInfoCitationCountsInterrupted,
		ActionInfoConfiguration,
		ActionHeartbeat:
		return true
	}
	return false
}

// Inbound reports whether a may arrive from a client. INFO_CONFIGURATION and
// HEARTBEAT are only ever sent by the server.
func (a Action) Inbound() bool {
	switch a {
	case ActionCmdRegister,
		ActionInfoMessage,
		ActionInfoCitationCounts,
		ActionInfoCitationCountsInterrupted:
		return true
	}
	return false
}
