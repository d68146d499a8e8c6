// Package grid holds the space grid primitives and the pure movement
// validator. Validate is deterministic and side-effect free so the movement
// rules can be unit tested without a running room.
package grid
