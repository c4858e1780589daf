package protocol

import (
	"encoding/json"
	"testing"

	"pgregory.net/rapid"
)

// TestEnvelopeRoundTrip tests that any action with any JSON-object payload
// survives an encode/decode cycle.
func TestEnvelopeRoundTrip(t *testing.T) {
	actions := []Action{
		ActionCmdRegister,
		ActionInfoMessage,
		ActionInfoCitationCounts,
		ActionInfoCitationCountsInterrupted,
		ActionInfoConfiguration,
		ActionHeartbeat,
	}

	rapid.Check(t, func(t *rapid.T) {
		action := rapid.SampledFrom(actions).Draw(t, "action")
		payload := rapid.MapOf(rapid.String(), rapid.String()).Draw(t, "payload")

		data, err := Encode(action, payload)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		env, err := Decode(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if env.Action != action {
			t.Fatalf("action mismatch: got %s, want %s", env.Action, action)
		}

		var decoded map[string]string
		if err := json.Unmarshal(env.Payload, &decoded); err != nil {
			t.Fatalf("payload unmarshal failed: %v", err)
		}
		if len(decoded) != len(payload) {
			t.Fatalf("payload size mismatch: got %d, want %d", len(decoded), len(payload))
		}
		for k, v := range payload {
			if decoded[k] != v {
				t.Fatalf("payload value mismatch for %q: got %q, want %q", k, decoded[k], v)
			}
		}
	})
}
