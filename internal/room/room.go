// ABOUTME: Live state machine for one space: membership, positions, broadcasts
// ABOUTME: Join, TryMove, and Leave are serialized per room under one mutex

package room

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

// Join errors
var (
	// ErrRoomClosed means the room drained to zero members and was torn
	// down; the caller should ask the registry for a fresh room.
	ErrRoomClosed = errors.New("room closed")

	// ErrAlreadyJoined means this userId already has a live session here.
	ErrAlreadyJoined = errors.New("user already in room")

	// ErrSpaceFull means no spawn cell is free.
	ErrSpaceFull = errors.New("no free spawn cell")
)

// Client is the per-connection handle a Room broadcasts to. Enqueue must be
// non-blocking: it reports false when the client's outbound buffer is full.
// Kill schedules the underlying connection to close; it must be safe to call
// from inside the room's critical section.
type Client interface {
	UserID() string
	SessionID() string
	Enqueue(frame []byte) bool
	Kill()
}

// registryHook is what a Room needs from its registry: teardown notification
// once membership reaches zero.
type registryHook interface {
	removeIfEmpty(spaceID string, r *Room)
}

// Room owns the live state for one space. All mutations run under mu, and
// every broadcast frame is enqueued inside the same critical section as the
// mutation that caused it, so the frames each member observes are in commit
// order. Delivery itself happens on each member's write pump, outside the
// lock.
type Room struct {
	space  *grid.Space
	rules  grid.Rules
	reg    registryHook
	logger *slog.Logger

	mu        sync.Mutex
	members   map[string]Client
	positions map[string]grid.Position
	closed    bool
}

func newRoom(space *grid.Space, rules grid.Rules, reg registryHook, logger *slog.Logger) *Room {
	return &Room{
		space:     space,
		rules:     rules,
		reg:       reg,
		logger:    logger.With("component", "room", "space_id", space.ID),
		members:   make(map[string]Client),
		positions: make(map[string]grid.Position),
	}
}

// SpaceID returns the id of the space this room runs.
func (r *Room) SpaceID() string {
	return r.space.ID
}

// MemberCount returns the current number of live members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Join adds c to the room. On success the joiner's space-joined frame (spawn
// plus the pre-join membership snapshot) is enqueued before the lock is
// released, so it is always the first frame the joiner receives; existing
// members get a user-join broadcast. Returns the spawn cell and the snapshot
// for the caller's logging and tests.
func (r *Room) Join(c Client) (grid.Position, []UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return grid.Position{}, nil, ErrRoomClosed
	}
	if _, exists := r.members[c.UserID()]; exists {
		return grid.Position{}, nil, ErrAlreadyJoined
	}

	spawn, ok := r.spawnLocked()
	if !ok {
		return grid.Position{}, nil, ErrSpaceFull
	}

	snapshot := r.snapshotLocked()

	r.members[c.UserID()] = c
	r.positions[c.UserID()] = spawn

	r.deliverLocked(c, spaceJoinedFrame(spawn, snapshot))
	r.broadcastLocked(userJoinFrame(c.UserID(), spawn), c.UserID())

	r.logger.Info("user joined",
		"user_id", c.UserID(),
		"session_id", c.SessionID(),
		"spawn_x", spawn.X,
		"spawn_y", spawn.Y,
		"members", len(r.members),
	)

	return spawn, snapshot, nil
}

// TryMove validates a movement request for c's user. A legal move commits the
// new position and broadcasts it to every other member; a rejected move
// unicasts the requester's last known-good position back to the requester
// only. The returned error is the rejection reason, nil for an accepted move.
func (r *Room) TryMove(c Client, to grid.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := c.UserID()
	cur, ok := r.members[userID]
	if !ok || cur != c {
		// Session no longer owns a membership here; nothing to do.
		return ErrRoomClosed
	}

	from := r.positions[userID]
	if err := grid.Validate(r.space, r.positions, userID, from, to, r.rules); err != nil {
		r.deliverLocked(c, movementRejectedFrame(from))
		r.logger.Debug("movement rejected",
			"user_id", userID,
			"to_x", to.X,
			"to_y", to.Y,
			"reason", err,
		)
		return err
	}

	r.positions[userID] = to
	r.broadcastLocked(movementFrame(userID, to), userID)
	return nil
}

// Leave removes c from the room and broadcasts user-left to the remaining
// members. Idempotent: a stale or repeated leave is a no-op. When the last
// member leaves the room closes permanently and unregisters itself.
func (r *Room) Leave(c Client) {
	r.mu.Lock()

	userID := c.UserID()
	cur, ok := r.members[userID]
	if !ok || cur != c {
		r.mu.Unlock()
		return
	}

	delete(r.members, userID)
	delete(r.positions, userID)
	r.broadcastLocked(userLeftFrame(userID), "")

	remaining := len(r.members)
	empty := remaining == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	r.logger.Info("user left",
		"user_id", userID,
		"session_id", c.SessionID(),
		"members", remaining,
	)

	if empty {
		r.reg.removeIfEmpty(r.space.ID, r)
	}
}

// spawnLocked picks the first free cell in row-major order (y outer, x
// inner): in bounds, not an obstacle, not occupied. The scan order is fixed
// so spawns are reproducible.
func (r *Room) spawnLocked() (grid.Position, bool) {
	occupied := make(map[grid.Position]struct{}, len(r.positions))
	for _, p := range r.positions {
		occupied[p] = struct{}{}
	}

	for y := 0; y < r.space.Height; y++ {
		for x := 0; x < r.space.Width; x++ {
			p := grid.Position{X: x, Y: y}
			if r.space.Blocked(p) {
				continue
			}
			if _, taken := occupied[p]; taken {
				continue
			}
			return p, true
		}
	}
	return grid.Position{}, false
}

// snapshotLocked returns the current membership sorted by userId.
func (r *Room) snapshotLocked() []UserRef {
	refs := make([]UserRef, 0, len(r.members))
	for userID := range r.members {
		refs = append(refs, UserRef{ID: userID})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// broadcastLocked enqueues a frame to every member except excludeUserID.
func (r *Room) broadcastLocked(b []byte, excludeUserID string) {
	for userID, m := range r.members {
		if userID == excludeUserID {
			continue
		}
		r.deliverLocked(m, b)
	}
}

// deliverLocked enqueues one frame to one member. A member whose buffer is
// full is disconnected rather than allowed to stall the room; its membership
// is cleaned up by the normal disconnect path.
func (r *Room) deliverLocked(m Client, b []byte) {
	if !m.Enqueue(b) {
		r.logger.Warn("outbound buffer full, disconnecting slow member",
			"user_id", m.UserID(),
			"session_id", m.SessionID(),
		)
		m.Kill()
	}
}
