package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzzleparty/server/puzzle/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrDuplicateUsername    = errors.New("username already in session")
	ErrAlreadySolved        = errors.New("puzzle already solved")
)

// Cursor is a participant's last reported pointer position in client pixels.
type Cursor struct {
	X int
	Y int
}

// Participant is a connected user attached to a session.
type Participant struct {
	Username string
	Cursor   Cursor
	JoinedAt time.Time
}

// Snapshot is a consistent copy of a session's shared state, taken under the
// session lock so joining clients never observe a half-applied swap.
type Snapshot struct {
	ID          string
	Cols        int
	Arrangement []int
	Tiles       []string
	Solved      bool
	OnlineUsers []string
}

// Session holds the authoritative state of one shared puzzle. All mutations
// go through methods that hold the session's own lock, so operations on one
// session are serialized without ever blocking unrelated sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	board        *engine.Board
	tiles        []string
	participants map[string]*Participant
	solved       bool
	lastActive   time.Time
	emptySince   time.Time
}

func newSession(id string, board *engine.Board, tiles []string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		board:        board,
		tiles:        tiles,
		participants: make(map[string]*Participant),
		lastActive:   now,
		emptySince:   now,
	}
}

// ApplySwap validates and applies a piece swap. It returns solvedNow=true on
// the swap that completes the puzzle; the solved transition fires at most
// once per session. Swaps against a solved session are rejected.
//
// When applied is non-nil it runs while the session lock is still held, so
// broadcasts issued from it leave in the order swaps were applied. The
// callback must not block and must not call back into the session.
func (s *Session) ApplySwap(position0, position1 int, applied func(solvedNow bool)) (solvedNow bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return false, fmt.Errorf("%w: session %s", ErrAlreadySolved, s.ID)
	}

	if err := s.board.Swap(position0, position1); err != nil {
		return false, err
	}

	s.lastActive = time.Now()

	solvedNow = s.board.Solved()
	if solvedNow {
		s.solved = true
	}
	if applied != nil {
		applied(solvedNow)
	}

	return solvedNow, nil
}

// Solved reports whether the session has reached its terminal solved state.
func (s *Session) Solved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solved
}

// AddParticipant attaches a user to the session and returns the usernames of
// everyone already present, sorted for stable output.
func (s *Session) AddParticipant(username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[username]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}

	others := make([]string, 0, len(s.participants))
	for name := range s.participants {
		others = append(others, name)
	}
	sort.Strings(others)

	s.participants[username] = &Participant{
		Username: username,
		JoinedAt: time.Now(),
	}
	s.lastActive = time.Now()
	s.emptySince = time.Time{}

	return others, nil
}

// RemoveParticipant detaches a user. It is idempotent: removing an absent
// user reports removed=false without error. When the last participant
// leaves, the session becomes eligible for teardown by the store's janitor.
func (s *Session) RemoveParticipant(username string) (removed, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[username]; !exists {
		return false, len(s.participants) == 0
	}

	delete(s.participants, username)
	s.lastActive = time.Now()

	if len(s.participants) == 0 {
		s.emptySince = time.Now()
		return true, true
	}

	return true, false
}

// SetCursor records a participant's last-known cursor position. Unknown
// usernames are ignored; cursor traffic is best-effort.
func (s *Session) SetCursor(username string, x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.participants[username]
	if !exists {
		return false
	}
	p.Cursor = Cursor{X: x, Y: y}
	return true
}

// Participants returns a copy of the current participant records.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// HasParticipant reports whether the given user is attached to the session.
func (s *Session) HasParticipant(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.participants[username]
	return exists
}

// Snapshot returns a consistent copy of the session state for a joining or
// rejoining client.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.participants))
	for name := range s.participants {
		users = append(users, name)
	}
	sort.Strings(users)

	tiles := make([]string, len(s.tiles))
	copy(tiles, s.tiles)

	return Snapshot{
		ID:          s.ID,
		Cols:        s.board.Cols(),
		Arrangement: s.board.Arrangement(),
		Tiles:       tiles,
		Solved:      s.solved,
		OnlineUsers: users,
	}
}

// idleEmpty reports whether the session has had no participants since before
// the cutoff.
func (s *Session) idleEmpty(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants) == 0 && !s.emptySince.IsZero() && s.emptySince.Before(cutoff)
}
