// ABOUTME: Grid primitives shared by the room engine and the catalog
// ABOUTME: Positions are integer cells; a Space is an immutable dimension/obstacle snapshot

package grid

// Position identifies a single cell on a space's grid.
type Position struct {
	X int
	Y int
}

// Space is a read-only snapshot of a space's static layout, fetched from the
// catalog at join time. The core never mutates it.
type Space struct {
	ID        string
	Width     int
	Height    int
	Obstacles map[Position]struct{}
}

// InBounds reports whether p lies inside the space.
func (s *Space) InBounds(p Position) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// Blocked reports whether p is covered by a static obstacle.
func (s *Space) Blocked(p Position) bool {
	_, ok := s.Obstacles[p]
	return ok
}
