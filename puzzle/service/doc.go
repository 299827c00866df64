// Package service implements the puzzle command surface: creating and
// joining sessions, applying swaps, and tracking cursors and departures.
//
// The service owns the ordering contract between state changes and
// broadcasts. Every mutation happens under the session's lock, and the
// matching event is handed to the broadcaster before the lock is released,
// so subscribers see events in exactly the order the state machine applied
// them. The hub buffers per subscriber and never blocks on subscriber I/O,
// so holding the lock across the hand-off never extends it onto the
// network.
package service
