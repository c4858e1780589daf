// Package protocol implements the JSON message envelope exchanged between
// the server and its websocket clients. Every frame is a UTF-8 text frame
// containing an object of the form {"action": ..., "payload": {...}}.
//
// The codec is stateless: Decode and Encode never touch the client directory
// or the transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotObject indicates the frame text is not a JSON object.
	ErrNotObject = errors.New("message is not a JSON object")
	// ErrMissingAction indicates the envelope has no usable action field.
	ErrMissingAction = errors.New("message has no action field")
	// ErrUnknownAction indicates the action is not in the recognized set.
	ErrUnknownAction = errors.New("unknown action")
)

// Envelope is the {action, payload} wrapper for every wire message. The
// payload is opaque at this layer; handlers decode it into their own types.
type Envelope struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a raw text frame into an envelope. It fails when the text is
// not a JSON object, when the action field is absent or not a string, or
// when the action is not part of the enumerated set.
func Decode(data []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	actionRaw, ok := raw["action"]
	if !ok {
		return nil, ErrMissingAction
	}

	var action Action
	if err := json.Unmarshal(actionRaw, &action); err != nil {
		return nil, fmt.Errorf("%w: action is not a string", ErrMissingAction)
	}

	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	return &Envelope{
		Action:  action,
		Payload: raw["payload"],
	}, nil
}

// Encode serializes an envelope for transmission. A nil payload is encoded
// as an empty object.
func Encode(action Action, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}

	payloadData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return json.Marshal(struct {
		Action  Action          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}{Action: action, Payload: payloadData})
}
