package protocol

// InfoMessagePayload is the payload of INFO_MESSAGE frames in both
// directions.
type InfoMessagePayload struct {
	MessageType string `json:"messageType"`
	Message     string `json:"message"`
}

// ConfigurationPayload is sent to every client right after it connects.
// Durations are in milliseconds.
type ConfigurationPayload struct {
	ConnectionLostTimeout    int64   `json:"connectionLostTimeout"`
	HeartbeatEnabled         bool    `json:"heartbeatEnabled"`
	HeartbeatInterval        int64   `json:"heartbeatInterval"`
	HeartbeatToleranceFactor float64 `json:"heartbeatToleranceFactor"`
}

// RegisterPayload is the payload of CMD_REGISTER, carrying the identity a
// client asserts for addressed delivery.
type RegisterPayload struct {
	ClientType string `json:"clientType"`
	ClientUID  string `json:"clientUid"`
}

// CitationCount is one entry's citation count as reported by a client.
type CitationCount struct {
	EntryID          string `json:"entryId"`
	CitationCount    int    `json:"citationCount"`
	CitationCountURL string `json:"citationCountUrl,omitempty"`
}

// CitationCountsPayload is the payload of INFO_GOOGLE_SCHOLAR_CITATION_COUNTS.
type CitationCountsPayload struct {
	CitationCounts []CitationCount `json:"citationCounts"`
}
