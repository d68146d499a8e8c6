// ABOUTME: Pure movement legality rules for a space grid
// ABOUTME: Checks bounds, obstacle, step size, and occupancy in order, first failure wins

package grid

import "errors"

// Rejection reasons, one per rule.
var (
	ErrOutOfBounds = errors.New("target out of bounds")
	ErrObstacle    = errors.New("target is an obstacle cell")
	ErrNonAdjacent = errors.New("target is not one cardinal step away")
	ErrOccupied    = errors.New("target cell is occupied")
)

// Rules holds the toggleable movement policies.
type Rules struct {
	// BlockOccupied rejects moves onto a cell currently held by another
	// member. When false, members may share a cell.
	BlockOccupied bool
}

// Validate decides whether moverID may move from from to to within space.
// positions is the room's current userId->position table (it may include the
// mover; the mover's own cell never counts as occupied). Returns nil for a
// legal move or one of the rejection reasons above.
//
// The checks run in a fixed order and short-circuit: bounds, obstacle,
// step size, occupancy.
func Validate(space *Space, positions map[string]Position, moverID string, from, to Position, rules Rules) error {
	if !space.InBounds(to) {
		return ErrOutOfBounds
	}
	if space.Blocked(to) {
		return ErrObstacle
	}
	if manhattan(from, to) != 1 {
		return ErrNonAdjacent
	}
	if rules.BlockOccupied {
		for userID, pos := range positions {
			if userID == moverID {
				continue
			}
			if pos == to {
				return ErrOccupied
			}
		}
	}
	return nil
}

func manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
