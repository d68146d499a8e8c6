// ABOUTME: Keyed map of live rooms with a per-key creation barrier
// ABOUTME: Exactly one room is built per space even under racing first joins

package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridhouse/presence-gateway/internal/catalog"
	"github.com/gridhouse/presence-gateway/internal/grid"
)

// Registry maps space ids to live rooms. Creation is guarded per key: the
// first joiner for a space becomes the leader, fetches the space snapshot
// from the catalog outside the table lock, and builds the room; concurrent
// joiners for the same space block on the entry's ready channel instead of
// fetching again. Rooms unregister themselves when their last member leaves.
type Registry struct {
	reader catalog.Reader
	rules  grid.Rules
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ready chan struct{} // closed once room/err are set
	room  *Room
	err   error
}

// NewRegistry creates a registry that resolves space metadata through reader.
func NewRegistry(reader catalog.Reader, rules grid.Rules, logger *slog.Logger) *Registry {
	return &Registry{
		reader:  reader,
		rules:   rules,
		logger:  logger.With("component", "registry"),
		entries: make(map[string]*entry),
	}
}

// GetOrCreate returns the live room for spaceID, constructing it if needed.
// A handle to a room that has already drained and closed is never returned;
// the lookup loops onto a fresh room instead. Lookup failures propagate to
// every joiner waiting on the same creation.
func (g *Registry) GetOrCreate(ctx context.Context, spaceID string) (*Room, error) {
	for {
		g.mu.Lock()
		e, ok := g.entries[spaceID]
		if !ok {
			e = &entry{ready: make(chan struct{})}
			g.entries[spaceID] = e
			g.mu.Unlock()
			return g.build(ctx, spaceID, e)
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.ready:
		}

		if e.err != nil {
			return nil, e.err
		}
		if e.room.isClosed() {
			// Raced with teardown; drop the stale entry and retry.
			g.removeIfEmpty(spaceID, e.room)
			continue
		}
		return e.room, nil
	}
}

// build runs on the creating goroutine, outside the table lock.
func (g *Registry) build(ctx context.Context, spaceID string, e *entry) (*Room, error) {
	space, err := g.reader.Lookup(ctx, spaceID)
	if err != nil {
		e.err = fmt.Errorf("looking up space %s: %w", spaceID, err)
		close(e.ready)

		g.mu.Lock()
		if g.entries[spaceID] == e {
			delete(g.entries, spaceID)
		}
		g.mu.Unlock()
		return nil, e.err
	}

	e.room = newRoom(space, g.rules, g, g.logger)
	close(e.ready)

	g.logger.Info("room created",
		"space_id", spaceID,
		"width", space.Width,
		"height", space.Height,
		"obstacles", len(space.Obstacles),
	)
	return e.room, nil
}

// removeIfEmpty drops the registry entry for r. The pointer comparison keeps
// a stale teardown from removing a newer room under the same space id.
func (g *Registry) removeIfEmpty(spaceID string, r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[spaceID]
	if !ok || e.room != r {
		return
	}

	delete(g.entries, spaceID)
	g.logger.Info("room removed", "space_id", spaceID)
}

// Stats reports live room and member counts for the stats endpoint.
func (g *Registry) Stats() (rooms, members int) {
	g.mu.Lock()
	entries := make([]*entry, 0, len(g.entries))
	for _, e := range g.entries {
		entries = append(entries, e)
	}
	g.mu.Unlock()

	for _, e := range entries {
		select {
		case <-e.ready:
		default:
			continue // still being built
		}
		if e.err == nil && e.room != nil && !e.room.isClosed() {
			rooms++
			members += e.room.MemberCount()
		}
	}
	return rooms, members
}
