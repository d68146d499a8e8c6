// Package catalog is the space/account metadata collaborator.
//
// # Reader
//
// The core consumes exactly one capability from this package:
//
//	type Reader interface {
//	    Lookup(ctx context.Context, spaceID string) (*grid.Space, error)
//	}
//
// Lookup materializes a read-only snapshot of a space: its dimensions plus
// the set of cells blocked by static elements. The room engine fetches the
// snapshot once at room creation and never consults the catalog again, so
// catalog writes during a room's lifetime do not affect live members.
//
// # Store
//
// Store is the SQLite-backed implementation. Besides Reader it carries the
// write path used by the presence-admin CLI: account creation with bcrypt
// hashes, credential checks for token minting, element/space registration,
// and TOML seed manifests. The gateway itself never calls the write path.
//
// MemoryReader is a map-backed Reader for tests.
package catalog
