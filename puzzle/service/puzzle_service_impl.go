package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/puzzleparty/server/metrics"
	"github.com/puzzleparty/server/puzzle/engine"
	"github.com/puzzleparty/server/puzzle/session"
	"github.com/puzzleparty/server/transport/eventbus"
)

var ErrInvalidRequest = errors.New("invalid request")

const (
	minCols = 2
	maxCols = 8
)

// puzzleServiceImpl implements the PuzzleService interface.
type puzzleServiceImpl struct {
	store  *session.Store
	tiles  TileSource
	bus    Publisher
	m      *metrics.Metrics
	logger *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewPuzzleService creates the service. The metrics argument may be nil in
// tests.
func NewPuzzleService(store *session.Store, tiles TileSource, bus Publisher, m *metrics.Metrics, logger *slog.Logger) PuzzleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &puzzleServiceImpl{
		store:  store,
		tiles:  tiles,
		bus:    bus,
		m:      m,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Play slices the source image, creates a shuffled session, and attaches the
// creator. Tile fetching happens before any session state exists, so a bad
// image URL never leaves a half-built session behind.
func (s *puzzleServiceImpl) Play(ctx context.Context, req PlayRequest) (*BoardPayload, error) {
	if req.PuzzleID == "" {
		req.PuzzleID = DefaultPuzzleID
	}
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidRequest)
	}
	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: imgUrl required", ErrInvalidRequest)
	}
	if req.Cols < minCols || req.Cols > maxCols {
		return nil, fmt.Errorf("%w: dimensionCols must be in [%d,%d], got %d", ErrInvalidRequest, minCols, maxCols, req.Cols)
	}

	tiles, err := s.tiles.Slice(ctx, req.ImageURL, req.Cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.rndMu.Lock()
	board, err := engine.NewShuffledBoard(req.Cols, s.rnd)
	s.rndMu.Unlock()
	if err != nil {
		return nil, err
	}

	sess, err := s.store.Create(req.PuzzleID, board, tiles)
	if err != nil {
		return nil, err
	}

	if _, err := sess.AddParticipant(req.Username); err != nil {
		return nil, err
	}

	if s.m != nil {
		s.m.ActiveSessions.Set(float64(s.store.Count()))
	}
	s.logger.Info("session created",
		"puzzle", req.PuzzleID, "cols", req.Cols, "username", req.Username)

	return payloadFromSnapshot(sess.Snapshot(), nil), nil
}

// Join attaches a participant to a running session and announces the
// arrival on the puzzle's join channel.
func (s *puzzleServiceImpl) Join(ctx context.Context, req JoinRequest) (*BoardPayload, error) {
	if req.PuzzleID == "" {
		req.PuzzleID = DefaultPuzzleID
	}
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidRequest)
	}

	sess, err := s.store.Get(req.PuzzleID)
	if err != nil {
		return nil, err
	}

	others, err := sess.AddParticipant(req.Username)
	if err != nil {
		return nil, err
	}

	s.publish(eventbus.JoinChannel(req.PuzzleID), eventbus.UserEvent{Username: req.Username}, "join")
	s.logger.Info("participant joined", "puzzle", req.PuzzleID, "username", req.Username)

	return payloadFromSnapshot(sess.Snapshot(), others), nil
}

// Swap applies a piece swap. Events are published from inside the session's
// critical section so broadcast order always matches application order; the
// hub never blocks on subscriber I/O, so this does not extend the lock onto
// the network.
func (s *puzzleServiceImpl) Swap(ctx context.Context, puzzleID string, position0, position1 int) error {
	if puzzleID == "" {
		puzzleID = DefaultPuzzleID
	}

	sess, err := s.store.Get(puzzleID)
	if err != nil {
		return err
	}

	solvedNow, err := sess.ApplySwap(position0, position1, func(solvedNow bool) {
		s.publish(eventbus.SwapChannel(puzzleID),
			eventbus.SwapEvent{Position0: position0, Position1: position1}, "swap")
		if solvedNow {
			s.publish(eventbus.SolvedChannel(puzzleID), struct{}{}, "solved")
		}
	})
	if err != nil {
		if s.m != nil {
			s.m.SwapsTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}

	if s.m != nil {
		s.m.SwapsTotal.WithLabelValues("applied").Inc()
	}

	if solvedNow {
		if s.m != nil {
			s.m.SessionsSolved.Inc()
		}
		s.logger.Info("puzzle solved", "puzzle", puzzleID)
	}

	return nil
}

// Sessions lists the live sessions, sorted by puzzle id for stable output.
func (s *puzzleServiceImpl) Sessions(ctx context.Context) []SessionInfo {
	live := s.store.List()

	out := make([]SessionInfo, 0, len(live))
	for _, sess := range live {
		snap := sess.Snapshot()
		out = append(out, SessionInfo{
			PuzzleID:     snap.ID,
			Cols:         snap.Cols,
			Participants: snap.OnlineUsers,
			Solved:       snap.Solved,
			CreatedAt:    sess.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PuzzleID < out[j].PuzzleID })

	return out
}

// RecordCursor stores the participant's last-known cursor position. Unknown
// sessions and usernames are ignored; the relay itself already happened.
func (s *puzzleServiceImpl) RecordCursor(ctx context.Context, puzzleID, username string, x, y int) {
	sess, err := s.store.Get(puzzleID)
	if err != nil {
		return
	}
	sess.SetCursor(username, x, y)
}

// Disconnect detaches a participant and announces the departure. Duplicate
// disconnect notifications are no-ops. Emptied sessions are left for the
// store janitor rather than torn down inline.
func (s *puzzleServiceImpl) Disconnect(ctx context.Context, puzzleID, username string) {
	sess, err := s.store.Get(puzzleID)
	if err != nil {
		return
	}

	removed, empty := sess.RemoveParticipant(username)
	if !removed {
		return
	}

	s.publish(eventbus.LeaveChannel(puzzleID), eventbus.UserEvent{Username: username}, "leave")
	s.logger.Info("participant left", "puzzle", puzzleID, "username", username, "empty", empty)
}

func (s *puzzleServiceImpl) publish(channel string, body any, kind string) {
	if s.m != nil {
		s.m.EventsPublished.WithLabelValues(kind).Inc()
	}
	s.bus.Publish(channel, body)
}

// payloadFromSnapshot converts a session snapshot into the piece payload
// shape. onlineUsers overrides the snapshot's user list so Join can exclude
// the caller.
func payloadFromSnapshot(snap session.Snapshot, onlineUsers []string) *BoardPayload {
	// invert arrangement: position of each piece
	positionOf := make([]int, len(snap.Arrangement))
	for pos, piece := range snap.Arrangement {
		positionOf[piece] = pos
	}

	pieces := make([]PiecePayload, len(positionOf))
	for piece := range pieces {
		pieces[piece] = PiecePayload{
			Piece:    piece,
			Position: positionOf[piece],
		}
		if snap.Tiles != nil {
			pieces[piece].Image = snap.Tiles[piece]
		}
	}

	if onlineUsers == nil {
		onlineUsers = []string{}
	}

	return &BoardPayload{
		PuzzleID:    snap.ID,
		Cols:        snap.Cols,
		Pieces:      pieces,
		OnlineUsers: onlineUsers,
		Solved:      snap.Solved,
	}
}
