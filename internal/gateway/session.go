// ABOUTME: One websocket session: handshake, read loop, buffered write pump
// ABOUTME: Implements the room's Client contract; teardown funnels through leaveOnce

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gridhouse/presence-gateway/internal/catalog"
	"github.com/gridhouse/presence-gateway/internal/grid"
	"github.com/gridhouse/presence-gateway/internal/room"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go silent before the read loop
	// gives up; pings go out at pingPeriod to keep healthy peers inside it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 << 10

	// joinRetries bounds the GetOrCreate/Join race against room teardown.
	joinRetries = 3
)

// session is the per-connection state. The read loop runs on the HTTP handler
// goroutine; writePump runs on its own goroutine and is the only writer to the
// websocket. Frames flow through out, which only the read loop closes, after
// the room has forgotten this session.
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	out    chan []byte
	logger *slog.Logger

	gw   *Gateway
	room *room.Room

	leaveOnce sync.Once
	killOnce  sync.Once
}

func newSession(gw *Gateway, conn *websocket.Conn) *session {
	id := uuid.New().String()
	return &session{
		id:     id,
		conn:   conn,
		out:    make(chan []byte, gw.cfg.Room.SendBuffer),
		logger: gw.logger.With("component", "session", "session_id", id),
		gw:     gw,
	}
}

// UserID implements room.Client. Empty until the handshake succeeds.
func (s *session) UserID() string { return s.userID }

// SessionID implements room.Client.
func (s *session) SessionID() string { return s.id }

// Enqueue implements room.Client. Non-blocking; false means the buffer is
// full and the caller will disconnect us.
func (s *session) Enqueue(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// Kill implements room.Client. Closing the connection unblocks the read
// loop, which then drives the normal teardown path.
func (s *session) Kill() {
	s.killOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// run owns the session lifecycle: handshake, then the movement loop. It
// returns when the connection dies for any reason; teardown (leave, buffer
// close) happens here exactly once.
func (s *session) run() {
	go s.writePump()

	defer func() {
		s.leave()
		close(s.out)
	}()

	if !s.handshake() {
		return
	}
	s.readLoop()
}

// handshake waits for the first frame, which must be a join, and places the
// session into its room. Failures send one error frame and report false.
func (s *session) handshake() bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.gw.cfg.Room.HandshakeTimeout))
	s.conn.SetReadLimit(maxMessageSize)

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return false
	}

	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != msgJoin {
		s.reject(CodeInvalidMessage, "first message must be a join")
		return false
	}
	var join joinPayload
	if err := json.Unmarshal(env.Payload, &join); err != nil || join.SpaceID == "" || join.Token == "" {
		s.reject(CodeInvalidMessage, "join requires spaceId and token")
		return false
	}

	userID, err := s.gw.verifier.Verify(join.Token)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		s.reject(CodeAuthFailed, "invalid token")
		return false
	}
	s.userID = userID
	s.logger = s.logger.With("user_id", userID, "space_id", join.SpaceID)

	if !s.joinRoom(join.SpaceID) {
		return false
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return true
}

// joinRoom resolves the room through the registry and joins it. A room that
// closes between lookup and join is retried against a fresh one.
func (s *session) joinRoom(spaceID string) bool {
	for attempt := 0; attempt < joinRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.gw.cfg.Room.LookupTimeout)
		r, err := s.gw.registry.GetOrCreate(ctx, spaceID)
		cancel()
		if err != nil {
			if errors.Is(err, catalog.ErrSpaceNotFound) {
				s.reject(CodeSpaceNotFound, "unknown space")
			} else {
				s.logger.Warn("space lookup failed", "error", err)
				s.reject(CodeSpaceNotFound, "space unavailable")
			}
			return false
		}

		_, _, err = r.Join(s)
		switch {
		case err == nil:
			s.room = r
			return true
		case errors.Is(err, room.ErrRoomClosed):
			continue
		case errors.Is(err, room.ErrAlreadyJoined):
			s.reject(CodeAlreadyJoined, "user already connected to this space")
			return false
		case errors.Is(err, room.ErrSpaceFull):
			s.reject(CodeSpaceFull, "no free cell to spawn on")
			return false
		default:
			s.logger.Warn("join failed", "error", err)
			s.reject(CodeInvalidMessage, "join failed")
			return false
		}
	}
	s.logger.Warn("join raced room teardown repeatedly")
	s.reject(CodeSpaceNotFound, "space unavailable")
	return false
}

// readLoop pumps movement requests into the room until the connection dies.
func (s *session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.Enqueue(errorFrame(CodeInvalidMessage, "malformed frame"))
			continue
		}

		switch env.Type {
		case msgMovement:
			var req movementRequest
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				s.Enqueue(errorFrame(CodeInvalidMessage, "malformed movement payload"))
				continue
			}
			// Rejection feedback is the room's job; the error return is
			// only interesting to logs.
			_ = s.room.TryMove(s, grid.Position{X: req.X, Y: req.Y})
		case msgJoin:
			s.Enqueue(errorFrame(CodeAlreadyJoined, "session already joined a space"))
		default:
			s.Enqueue(errorFrame(CodeInvalidMessage, "unknown frame type "+env.Type))
		}
	}
}

// reject enqueues one error frame for the write pump to flush before the
// connection closes.
func (s *session) reject(code, message string) {
	s.Enqueue(errorFrame(code, message))
}

// leave detaches from the room at most once. After Leave returns the room
// holds no reference to this session, so closing out is safe.
func (s *session) leave() {
	s.leaveOnce.Do(func() {
		if s.room != nil {
			s.room.Leave(s)
		}
	})
}

// writePump is the sole websocket writer. It drains out, pings idle peers,
// and closes the connection once out is closed and flushed.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.out:
			if !ok {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
