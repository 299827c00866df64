package eventbus

// Channel name constructors. Every channel is scoped to one puzzle id and
// one event kind; the names match what the browser client registers.

// SwapChannel carries SwapEvent payloads for applied swaps.
func SwapChannel(puzzleID string) string { return "global_puzzle." + puzzleID }

// SolvedChannel carries the terminal solved notification (no payload).
func SolvedChannel(puzzleID string) string { return "end." + puzzleID }

// CursorChannel relays participant cursor positions.
func CursorChannel(puzzleID string) string { return "puzzle_users." + puzzleID }

// JoinChannel announces newly attached participants.
func JoinChannel(puzzleID string) string { return "newOnlineUser." + puzzleID }

// LeaveChannel announces detached participants.
func LeaveChannel(puzzleID string) string { return "offlineUser." + puzzleID }

// SwapEvent is broadcast after a swap is applied. It is only meaningful
// relative to the arrangement it was generated against; subscribers apply
// events in delivery order, which matches publish order per channel.
type SwapEvent struct {
	Position0 int `json:"position0"`
	Position1 int `json:"position1"`
}

// CursorEvent is the cursor-position relay payload. It carries no ordering
// guarantee relative to swaps.
type CursorEvent struct {
	PositionX int    `json:"positionX"`
	PositionY int    `json:"positionY"`
	Username  string `json:"username"`
}

// UserEvent announces a participant joining or leaving a session.
type UserEvent struct {
	Username string `json:"username"`
}
