package core

import "encoding/json"

// Envelope is the wire framing: one {type, payload} object per frame.
// Unknown types are ignored by receivers so the protocol stays
// forward-compatible.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode builds an outbound frame for the given message type.
func Encode(msgType string, payload any) (Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(Envelope{Type: msgType, Payload: body})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
