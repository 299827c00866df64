package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/puzzleparty/server/puzzle/engine"
)

// Store maps puzzle ids to live sessions. The store's own lock guards only
// the map; each session carries its own lock, so mutations against distinct
// sessions proceed in parallel.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for the given puzzle id. The tiles slice is
// indexed by piece id and must match the board size.
func (st *Store) Create(id string, board *engine.Board, tiles []string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("puzzle id must not be empty")
	}
	if tiles != nil && len(tiles) != board.Size() {
		return nil, fmt.Errorf("expected %d tiles, got %d", board.Size(), len(tiles))
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyExists, id)
	}

	sess := newSession(id, board, tiles)
	st.sessions[id] = sess

	return sess, nil
}

// Get retrieves a session by puzzle id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, exists := st.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes a session from the store.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(st.sessions, id)
	return nil
}

// List returns all active sessions.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of active sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CleanupEmpty removes sessions that have been without participants for at
// least the grace period and returns how many were torn down. Lifecycle
// teardown is batched: an emptied session lingers until the next janitor
// pass so a quickly reconnecting client can resume it.
func (st *Store) CleanupEmpty(grace time.Duration) int {
	cutoff := time.Now().Add(-grace)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, sess := range st.sessions {
		if sess.idleEmpty(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
