package service

import (
	"context"
)

// PuzzleService defines the command surface of the puzzle server. Commands
// arrive over HTTP; resulting events leave over the event bus.
type PuzzleService interface {
	// Play creates a new session for a puzzle and attaches the creator.
	Play(ctx context.Context, req PlayRequest) (*BoardPayload, error)

	// Join attaches a participant to an existing session and returns a
	// consistent snapshot for rendering.
	Join(ctx context.Context, req JoinRequest) (*BoardPayload, error)

	// Swap validates and applies a piece swap, broadcasting the result.
	Swap(ctx context.Context, puzzleID string, position0, position1 int) error

	// Sessions lists the live sessions for the monitoring surface.
	Sessions(ctx context.Context) []SessionInfo

	// RecordCursor stores a participant's last reported cursor position.
	// Relay to other clients happens at the gateway; this only updates the
	// session store.
	RecordCursor(ctx context.Context, puzzleID, username string, x, y int)

	// Disconnect detaches a participant, announcing the departure to the
	// remaining subscribers. Safe to call repeatedly for the same user.
	Disconnect(ctx context.Context, puzzleID, username string)
}

// Publisher is the broadcaster the service hands events to. Implementations
// must not block on subscriber I/O.
type Publisher interface {
	Publish(channel string, body any)
}

// TileSource produces the per-piece images for a new session.
type TileSource interface {
	Slice(ctx context.Context, imageURL string, cols int) ([]string, error)
}
