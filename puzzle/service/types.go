package service

import "time"

// DefaultPuzzleID is assumed when a request names no puzzle.
const DefaultPuzzleID = "1"

// PlayRequest creates a session.
type PlayRequest struct {
	PuzzleID string `json:"puzzleId,omitempty"`
	ImageURL string `json:"imgUrl"`
	Cols     int    `json:"dimensionCols"`
	Username string `json:"username"`
}

// JoinRequest attaches a participant to a running session.
type JoinRequest struct {
	PuzzleID string `json:"puzzleId,omitempty"`
	Username string `json:"username"`
}

// PiecePayload pairs a piece with its current grid position and image data.
type PiecePayload struct {
	Piece    int
	Position int
	Image    string
}

// SessionInfo summarizes one live session for the session listing.
type SessionInfo struct {
	PuzzleID     string    `json:"puzzleId"`
	Cols         int       `json:"dimensionCols"`
	Participants []string  `json:"participants"`
	Solved       bool      `json:"solved"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BoardPayload is the snapshot returned by Play and Join. Pieces is indexed
// by piece id; OnlineUsers lists the other connected participants (never
// the caller) so a joining client can render existing cursors.
type BoardPayload struct {
	PuzzleID    string
	Cols        int
	Pieces      []PiecePayload
	OnlineUsers []string
	Solved      bool
}
