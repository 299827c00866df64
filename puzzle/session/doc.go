// Package session provides the authoritative store for live puzzle sessions.
//
// The session package implements:
//   - Thread-safe session lookup keyed by puzzle id
//   - Per-session exclusive locking for all state mutations
//   - Participant attachment with duplicate-username rejection
//   - Cursor position bookkeeping
//   - The monotonic unsolved-to-solved transition
//   - Batched teardown of emptied sessions
//
// Concurrency:
//
// The Store's lock guards only the id-to-session map. Every Session owns its
// own mutex, and all reads and writes of a session's board, participant set,
// and solved flag go through methods that hold it. Two swaps racing on the
// same session are therefore applied in some total order with no torn state,
// while sessions never contend with each other.
//
// Lifecycle:
//
// A session is created on the first play request, accumulates participants
// on join, and becomes eligible for teardown once its participant set
// empties. Teardown is batched: the store's CleanupEmpty is invoked
// periodically by the server rather than inline on the last disconnect.
//
// Usage:
//
//	store := session.NewStore()
//	sess, err := store.Create("1", board, tiles)
//	if err != nil {
//		// session.ErrSessionAlreadyExists if the id is taken
//	}
//
//	solvedNow, err := sess.ApplySwap(0, 5, nil)
package session
