package engine

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrOutOfRange     = errors.New("position out of range")
	ErrSamePosition   = errors.New("positions must differ")
	ErrNotPermutation = errors.New("arrangement is not a permutation of the piece set")
	ErrInvalidGrid    = errors.New("invalid grid dimensions")
)

// Board holds the current arrangement of puzzle pieces on a square grid.
// arrangement[pos] is the id of the piece currently occupying grid position
// pos. Piece ids run from 0 to cols*cols-1 and id i is "home" at position i,
// so the board is solved when the arrangement is the identity permutation.
//
// Board carries no locking of its own; callers serialize access per session.
type Board struct {
	cols        int
	arrangement []int
}

// NewBoard creates a board from an explicit arrangement. The arrangement
// must be a permutation of [0, cols*cols).
func NewBoard(cols int, arrangement []int) (*Board, error) {
	if cols < 2 {
		return nil, fmt.Errorf("%w: need at least 2 columns, got %d", ErrInvalidGrid, cols)
	}
	size := cols * cols
	if len(arrangement) != size {
		return nil, fmt.Errorf("%w: expected %d positions, got %d", ErrNotPermutation, size, len(arrangement))
	}

	seen := make([]bool, size)
	for _, piece := range arrangement {
		if piece < 0 || piece >= size || seen[piece] {
			return nil, ErrNotPermutation
		}
		seen[piece] = true
	}

	b := &Board{
		cols:        cols,
		arrangement: make([]int, size),
	}
	copy(b.arrangement, arrangement)

	return b, nil
}

// NewShuffledBoard creates a board with a randomly shuffled arrangement.
func NewShuffledBoard(cols int, rnd *rand.Rand) (*Board, error) {
	if cols < 2 {
		return nil, fmt.Errorf("%w: need at least 2 columns, got %d", ErrInvalidGrid, cols)
	}

	b := &Board{
		cols:        cols,
		arrangement: rnd.Perm(cols * cols),
	}

	return b, nil
}

// Cols returns the number of grid columns (the grid is square).
func (b *Board) Cols() int {
	return b.cols
}

// Size returns the total number of grid positions.
func (b *Board) Size() int {
	return len(b.arrangement)
}

// Arrangement returns a copy of the current arrangement.
func (b *Board) Arrangement() []int {
	out := make([]int, len(b.arrangement))
	copy(out, b.arrangement)
	return out
}

// Swap exchanges the pieces at the two given grid positions. The exchange is
// all-or-nothing: on any validation error the arrangement is left untouched.
func (b *Board) Swap(position0, position1 int) error {
	size := len(b.arrangement)
	if position0 < 0 || position0 >= size {
		return fmt.Errorf("%w: position0=%d not in [0,%d)", ErrOutOfRange, position0, size)
	}
	if position1 < 0 || position1 >= size {
		return fmt.Errorf("%w: position1=%d not in [0,%d)", ErrOutOfRange, position1, size)
	}
	if position0 == position1 {
		return fmt.Errorf("%w: %d", ErrSamePosition, position0)
	}

	b.arrangement[position0], b.arrangement[position1] = b.arrangement[position1], b.arrangement[position0]
	return nil
}

// Solved reports whether every piece sits at its home position.
func (b *Board) Solved() bool {
	for pos, piece := range b.arrangement {
		if pos != piece {
			return false
		}
	}
	return true
}
