// ABOUTME: In-memory Reader used by tests and local experiments
// ABOUTME: Hands out defensive copies so room code can never alias a shared snapshot

package catalog

import (
	"context"
	"sync"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

// MemoryReader is a Reader backed by a plain map.
type MemoryReader struct {
	mu     sync.RWMutex
	spaces map[string]*grid.Space
}

// NewMemoryReader creates an empty in-memory catalog.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{spaces: make(map[string]*grid.Space)}
}

// Add registers a space snapshot under its ID.
func (m *MemoryReader) Add(space *grid.Space) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spaces[space.ID] = space
}

// Lookup implements Reader.
func (m *MemoryReader) Lookup(_ context.Context, spaceID string) (*grid.Space, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	space, ok := m.spaces[spaceID]
	if !ok {
		return nil, ErrSpaceNotFound
	}

	// Copy so callers can't mutate the stored snapshot
	out := &grid.Space{
		ID:        space.ID,
		Width:     space.Width,
		Height:    space.Height,
		Obstacles: make(map[grid.Position]struct{}, len(space.Obstacles)),
	}
	for p := range space.Obstacles {
		out.Obstacles[p] = struct{}{}
	}
	return out, nil
}
