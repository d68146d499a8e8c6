// ABOUTME: Catalog collaborator types and the read-only Reader capability
// ABOUTME: The core consumes Lookup only; the write path exists for tooling

package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/gridhouse/presence-gateway/internal/grid"
)

// Catalog errors
var (
	// ErrSpaceNotFound covers unknown space ids. Collaborator failures are
	// classified the same way at the gateway so clients retry uniformly.
	ErrSpaceNotFound      = errors.New("space not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrElementNotFound    = errors.New("element not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Reader is the read-only space-metadata capability injected into the room
// registry. The core never sees the storage technology behind it.
type Reader interface {
	// Lookup returns an immutable snapshot of the space's dimensions and
	// obstacle layout, or ErrSpaceNotFound.
	Lookup(ctx context.Context, spaceID string) (*grid.Space, error)
}

// User is a catalog account. Passwords never leave the store.
type User struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time
}

// Element is a placeable object template. Static elements block movement.
type Element struct {
	ID       string
	ImageURL string
	Width    int
	Height   int
	Static   bool
}

// SpaceInfo is the listing view of a space.
type SpaceInfo struct {
	ID     string
	Name   string
	Width  int
	Height int
}
