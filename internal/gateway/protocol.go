// ABOUTME: Wire protocol for the websocket endpoint: inbound envelopes, error frames
// ABOUTME: Inbound payloads stay raw JSON until the type is known

package gateway

import "encoding/json"

// Inbound frame types.
const (
	msgJoin     = "join"
	msgMovement = "movement"
)

// Error codes sent to clients in error frames.
const (
	CodeAuthFailed     = "authentication-failed"
	CodeSpaceNotFound  = "space-not-found"
	CodeSpaceFull      = "space-full"
	CodeAlreadyJoined  = "already-joined"
	CodeInvalidMessage = "invalid-message"
)

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	SpaceID string `json:"spaceId"`
	Token   string `json:"token"`
}

type movementRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorFrame encodes an outbound error envelope.
func errorFrame(code, message string) []byte {
	b, _ := json.Marshal(struct {
		Type    string       `json:"type"`
		Payload errorPayload `json:"payload"`
	}{Type: "error", Payload: errorPayload{Code: code, Message: message}})
	return b
}
