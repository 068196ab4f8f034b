package ws

import "encoding/json"

// Message is the envelope for all traffic in both directions: a type for
// routing and a raw payload decoded by the handler that owns the type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals v into a Message payload. Payload encoding errors
// are programming errors (all payload types are plain structs), so the
// message is returned with an empty payload on failure.
func NewMessage(msgType string, v interface{}) Message {
	if v == nil {
		return Message{Type: msgType}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Message{Type: msgType}
	}
	return Message{Type: msgType, Payload: raw}
}
