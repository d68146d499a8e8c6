// ABOUTME: Outbound event payloads and frame encoding for room broadcasts
// ABOUTME: Frames are marshaled once per event, inside the commit's critical section

package room

import (
	"encoding/json"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

// Outbound frame types.
const (
	TypeSpaceJoined      = "space-joined"
	TypeUserJoin         = "user-join"
	TypeMovement         = "movement"
	TypeMovementRejected = "movement-rejected"
	TypeUserLeft         = "user-left"
)

// UserRef identifies an existing member in a space-joined snapshot.
type UserRef struct {
	ID string `json:"id"`
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type spaceJoinedPayload struct {
	Spawn position  `json:"spawn"`
	Users []UserRef `json:"users"`
}

type userJoinPayload struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type movementPayload struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type movementRejectedPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type userLeftPayload struct {
	UserID string `json:"userId"`
}

// frame marshals an envelope. The payload types above cannot fail to marshal.
func frame(typ string, payload any) []byte {
	b, _ := json.Marshal(envelope{Type: typ, Payload: payload})
	return b
}

func spaceJoinedFrame(spawn grid.Position, users []UserRef) []byte {
	if users == nil {
		users = []UserRef{}
	}
	return frame(TypeSpaceJoined, spaceJoinedPayload{
		Spawn: position{X: spawn.X, Y: spawn.Y},
		Users: users,
	})
}

func userJoinFrame(userID string, p grid.Position) []byte {
	return frame(TypeUserJoin, userJoinPayload{UserID: userID, X: p.X, Y: p.Y})
}

func movementFrame(userID string, p grid.Position) []byte {
	return frame(TypeMovement, movementPayload{UserID: userID, X: p.X, Y: p.Y})
}

func movementRejectedFrame(p grid.Position) []byte {
	return frame(TypeMovementRejected, movementRejectedPayload{X: p.X, Y: p.Y})
}

func userLeftFrame(userID string) []byte {
	return frame(TypeUserLeft, userLeftPayload{UserID: userID})
}
