// Package room is the movement-synchronization core: live rooms, the room
// registry, and event fan-out.
//
// # Concurrency model
//
// Each Room is a single-writer structure. Join, TryMove, and Leave for one
// room serialize on the room's mutex; operations on different rooms share no
// lock and run fully in parallel. None of the three operations block: the
// only suspension in the join path is the catalog lookup, which happens in
// the Registry before the room exists (or is skipped entirely when the room
// already does).
//
// # Ordering
//
// Every frame a mutation produces is enqueued to the affected members'
// outbound buffers inside the mutation's own critical section. Per-member
// buffers are FIFO, so the frames any fixed member observes are exactly the
// room's commit order. Delivery runs on each connection's write pump and
// never holds the room lock; a member whose buffer overflows is disconnected
// instead of stalling the room (the frame is dropped, the connection is
// killed, and cleanup flows through the regular disconnect path).
//
// # Lifecycle
//
// The Registry builds at most one Room per space id, even under concurrent
// first joins: the creating goroutine fetches the space snapshot from the
// catalog while later arrivals wait on the entry's ready channel. A room
// whose membership reaches zero closes permanently and removes its registry
// entry; the next join builds a fresh room from a fresh catalog snapshot.
//
// # Spawn policy
//
// Joiners spawn at the first free cell in row-major scan order (y rows from
// the top, x within each row), skipping obstacles and occupied cells. The
// rule is deterministic so tests can predict spawn coordinates.
package room
