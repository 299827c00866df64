package engine

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewBoard(t *testing.T) {
	t.Run("valid arrangement", func(t *testing.T) {
		b, err := NewBoard(2, []int{0, 1, 2, 3})
		if err != nil {
			t.Fatalf("NewBoard failed: %v", err)
		}
		if b.Cols() != 2 {
			t.Errorf("Expected 2 cols, got %d", b.Cols())
		}
		if b.Size() != 4 {
			t.Errorf("Expected size 4, got %d", b.Size())
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewBoard(2, []int{0, 1, 2})
		if !errors.Is(err, ErrNotPermutation) {
			t.Errorf("Expected ErrNotPermutation, got %v", err)
		}
	})

	t.Run("duplicate piece", func(t *testing.T) {
		_, err := NewBoard(2, []int{0, 1, 1, 3})
		if !errors.Is(err, ErrNotPermutation) {
			t.Errorf("Expected ErrNotPermutation, got %v", err)
		}
	})

	t.Run("piece out of range", func(t *testing.T) {
		_, err := NewBoard(2, []int{0, 1, 2, 7})
		if !errors.Is(err, ErrNotPermutation) {
			t.Errorf("Expected ErrNotPermutation, got %v", err)
		}
	})

	t.Run("too few columns", func(t *testing.T) {
		_, err := NewBoard(1, []int{0})
		if !errors.Is(err, ErrInvalidGrid) {
			t.Errorf("Expected ErrInvalidGrid, got %v", err)
		}
	})
}

func TestBoardSwap(t *testing.T) {
	tests := []struct {
		name      string
		position0 int
		position1 int
		wantErr   error
		want      []int
	}{
		{"adjacent positions", 0, 1, nil, []int{1, 0, 2, 3}},
		{"distant positions", 0, 3, nil, []int{3, 1, 2, 0}},
		{"same position", 2, 2, ErrSamePosition, nil},
		{"negative position", -1, 2, ErrOutOfRange, nil},
		{"position0 too large", 4, 1, ErrOutOfRange, nil},
		{"position1 too large", 1, 4, ErrOutOfRange, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBoard(2, []int{0, 1, 2, 3})
			if err != nil {
				t.Fatalf("NewBoard failed: %v", err)
			}

			err = b.Swap(tt.position0, tt.position1)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				// failed swap must leave the arrangement untouched
				got := b.Arrangement()
				for i, piece := range []int{0, 1, 2, 3} {
					if got[i] != piece {
						t.Errorf("Arrangement mutated on failed swap: %v", got)
						break
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Swap failed: %v", err)
			}
			got := b.Arrangement()
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Expected arrangement %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestBoardSwapSelfInverse(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	b, err := NewShuffledBoard(4, rnd)
	if err != nil {
		t.Fatalf("NewShuffledBoard failed: %v", err)
	}

	before := b.Arrangement()

	if err := b.Swap(3, 11); err != nil {
		t.Fatalf("First swap failed: %v", err)
	}
	if err := b.Swap(3, 11); err != nil {
		t.Fatalf("Second swap failed: %v", err)
	}

	after := b.Arrangement()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Swap twice did not restore arrangement: before=%v after=%v", before, after)
		}
	}
}

func TestBoardArrangementIsPermutation(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	b, err := NewShuffledBoard(3, rnd)
	if err != nil {
		t.Fatalf("NewShuffledBoard failed: %v", err)
	}

	// Apply a pile of random swaps and verify no piece is ever lost or duplicated.
	for i := 0; i < 200; i++ {
		p0 := rnd.Intn(b.Size())
		p1 := rnd.Intn(b.Size())
		if p0 == p1 {
			continue
		}
		if err := b.Swap(p0, p1); err != nil {
			t.Fatalf("Swap(%d,%d) failed: %v", p0, p1, err)
		}

		seen := make(map[int]bool)
		for _, piece := range b.Arrangement() {
			if piece < 0 || piece >= b.Size() || seen[piece] {
				t.Fatalf("Arrangement is not a permutation after swap %d: %v", i, b.Arrangement())
			}
			seen[piece] = true
		}
	}
}

func TestBoardSolved(t *testing.T) {
	t.Run("identity arrangement is solved", func(t *testing.T) {
		b, _ := NewBoard(2, []int{0, 1, 2, 3})
		if !b.Solved() {
			t.Error("Expected identity arrangement to be solved")
		}
	})

	t.Run("shuffled arrangement is not solved", func(t *testing.T) {
		b, _ := NewBoard(2, []int{1, 0, 2, 3})
		if b.Solved() {
			t.Error("Expected shuffled arrangement to be unsolved")
		}
	})

	t.Run("solving swap", func(t *testing.T) {
		b, _ := NewBoard(2, []int{1, 0, 2, 3})
		if err := b.Swap(0, 1); err != nil {
			t.Fatalf("Swap failed: %v", err)
		}
		if !b.Solved() {
			t.Error("Expected board to be solved after final swap")
		}
	})
}

func TestBoardArrangementCopy(t *testing.T) {
	b, _ := NewBoard(2, []int{2, 0, 3, 1})

	out := b.Arrangement()
	out[0] = 99

	if got := b.Arrangement()[0]; got != 2 {
		t.Errorf("Mutating the returned arrangement leaked into the board: %d", got)
	}
}
