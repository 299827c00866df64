// Package engine implements the board rules for a shared swap puzzle.
//
// A board is a square grid of piece positions. Pieces are identified by the
// grid position they belong to in the finished image, and the only mutation
// the rules allow is exchanging the pieces at two distinct positions. The
// engine validates swaps, keeps the arrangement a permutation of the piece
// set at all times, and detects the solved state.
//
// Core Types:
//
// Board holds the arrangement and exposes Swap and Solved. Boards are plain
// values with no internal locking; the session layer serializes access so
// that concurrent swaps against the same board never interleave.
//
// Usage:
//
//	board, err := engine.NewShuffledBoard(4, rnd)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := board.Swap(0, 5); err != nil {
//		// out of range or same position
//	}
//	if board.Solved() {
//		// terminal state
//	}
package engine
