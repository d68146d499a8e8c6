// ABOUTME: End-to-end websocket tests against an in-process gateway
// ABOUTME: Real gorilla clients over httptest, in-memory catalog, real tokens

package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridhouse/presence-gateway/internal/auth"
	"github.com/gridhouse/presence-gateway/internal/catalog"
	"github.com/gridhouse/presence-gateway/internal/config"
	"github.com/gridhouse/presence-gateway/internal/grid"
)

const testSecret = "test-secret"

type testEnv struct {
	server   *httptest.Server
	verifier *auth.JWTVerifier
}

func newTestEnv(t *testing.T, spaces ...*grid.Space) *testEnv {
	t.Helper()

	reader := catalog.NewMemoryReader()
	for _, s := range spaces {
		reader.Add(s)
	}

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Database.Path = "unused"

	verifier := auth.NewJWTVerifier([]byte(testSecret))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := New(cfg, reader, verifier, logger)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, verifier: verifier}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Generate(userID, "User", time.Hour)
	require.NoError(t, err)
	return tok
}

// dial opens a websocket without joining.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join dials and completes the handshake, returning the conn and the
// decoded space-joined payload.
func (e *testEnv) join(t *testing.T, userID, spaceID string) (*websocket.Conn, spaceJoinedView) {
	t.Helper()
	conn := e.dial(t)
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": spaceID, "token": e.token(t, userID)},
	})

	env := readFrame(t, conn)
	require.Equal(t, "space-joined", env.Type, "payload: %s", env.Payload)
	var joined spaceJoinedView
	require.NoError(t, json.Unmarshal(env.Payload, &joined))
	return conn, joined
}

type outboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type spaceJoinedView struct {
	Spawn struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"spawn"`
	Users []struct {
		ID string `json:"id"`
	} `json:"users"`
}

type movementView struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env outboundEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func sendMove(t *testing.T, conn *websocket.Conn, x, y int) {
	t.Helper()
	sendJSON(t, conn, map[string]any{
		"type":    "movement",
		"payload": map[string]int{"x": x, "y": y},
	})
}

func openSpace(id string, width, height int) *grid.Space {
	return &grid.Space{
		ID:        id,
		Width:     width,
		Height:    height,
		Obstacles: map[grid.Position]struct{}{},
	}
}

func TestGateway_JoinHandshake(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	_, joined := env.join(t, "user-a", "arena")
	assert.Equal(t, 0, joined.Spawn.X)
	assert.Equal(t, 0, joined.Spawn.Y)
	assert.Empty(t, joined.Users)
}

func TestGateway_SecondJoinerSeesFirst(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	connA, _ := env.join(t, "user-a", "arena")
	_, joinedB := env.join(t, "user-b", "arena")

	require.Len(t, joinedB.Users, 1)
	assert.Equal(t, "user-a", joinedB.Users[0].ID)

	frame := readFrame(t, connA)
	require.Equal(t, "user-join", frame.Type)
	var view movementView
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, "user-b", view.UserID)
}

func TestGateway_MovementBroadcast(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	connA, joinedA := env.join(t, "user-a", "arena")
	connB, _ := env.join(t, "user-b", "arena")
	readFrame(t, connA) // user-join for B

	sendMove(t, connA, joinedA.Spawn.X, joinedA.Spawn.Y+1)

	frame := readFrame(t, connB)
	require.Equal(t, "movement", frame.Type)
	var view movementView
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, "user-a", view.UserID)
	assert.Equal(t, joinedA.Spawn.X, view.X)
	assert.Equal(t, joinedA.Spawn.Y+1, view.Y)
}

func TestGateway_MovementRejectedEcho(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn, joined := env.join(t, "user-a", "arena")

	// Teleport attempt bounces back with the current position.
	sendMove(t, conn, joined.Spawn.X+7, joined.Spawn.Y)

	frame := readFrame(t, conn)
	require.Equal(t, "movement-rejected", frame.Type)
	var view struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, joined.Spawn.X, view.X)
	assert.Equal(t, joined.Spawn.Y, view.Y)
}

func TestGateway_DisconnectBroadcastsUserLeft(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	connA, _ := env.join(t, "user-a", "arena")
	connB, _ := env.join(t, "user-b", "arena")
	readFrame(t, connA) // user-join for B

	require.NoError(t, connB.Close())

	frame := readFrame(t, connA)
	require.Equal(t, "user-left", frame.Type)
	var view struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, "user-b", view.UserID)
}

func TestGateway_BadTokenRejected(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": "arena", "token": "not-a-jwt"},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeAuthFailed, view.Code)

	// Server closes after the error frame.
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestGateway_UnknownSpaceRejected(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": "nowhere", "token": env.token(t, "user-a")},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeSpaceNotFound, view.Code)
}

func TestGateway_DuplicateUserRejected(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	env.join(t, "user-a", "arena")

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": "arena", "token": env.token(t, "user-a")},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeAlreadyJoined, view.Code)
}

func TestGateway_FullSpaceRejected(t *testing.T) {
	env := newTestEnv(t, openSpace("closet", 1, 1))

	env.join(t, "user-a", "closet")

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": "closet", "token": env.token(t, "user-b")},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeSpaceFull, view.Code)
}

func TestGateway_NonJoinFirstMessageRejected(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn := env.dial(t)
	sendMove(t, conn, 1, 0)

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeInvalidMessage, view.Code)
}

func TestGateway_SecondJoinOnSameConnectionErrorsButSurvives(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn, joined := env.join(t, "user-a", "arena")
	sendJSON(t, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"spaceId": "arena", "token": env.token(t, "user-a")},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	var view errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &view))
	assert.Equal(t, CodeAlreadyJoined, view.Code)

	// The session is still live and still moves.
	sendMove(t, conn, joined.Spawn.X+1, joined.Spawn.Y)
	sendMove(t, conn, joined.Spawn.X+5, joined.Spawn.Y) // rejected
	frame = readFrame(t, conn)
	assert.Equal(t, "movement-rejected", frame.Type)
}

func TestGateway_RejoinAfterSpaceDrained(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200))

	conn, _ := env.join(t, "user-a", "arena")
	require.NoError(t, conn.Close())

	// The old room tears down; the rejoin lands in a fresh one. Poll
	// briefly since teardown races the close.
	deadline := time.Now().Add(2 * time.Second)
	for {
		c, _, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
		require.NoError(t, err)
		sendJSON(t, c, map[string]any{
			"type":    "join",
			"payload": map[string]string{"spaceId": "arena", "token": env.token(t, "user-a")},
		})
		frame := readFrame(t, c)
		if frame.Type == "space-joined" {
			_ = c.Close()
			return
		}
		_ = c.Close()
		if time.Now().After(deadline) {
			t.Fatalf("rejoin kept failing, last frame type %q", frame.Type)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGateway_Healthz(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGateway_Stats(t *testing.T) {
	env := newTestEnv(t, openSpace("arena", 100, 200), openSpace("plaza", 50, 50))

	env.join(t, "user-a", "arena")
	env.join(t, "user-b", "arena")
	env.join(t, "user-c", "plaza")

	resp, err := http.Get(env.server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats struct {
		Rooms   int `json:"rooms"`
		Members int `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 3, stats.Members)
}
