// Package wire defines the JSON bodies exchanged with the economy API.
package wire

type StateResponse struct {
	PlayerID                uint64   `json:"playerId"`
	Balance                 int64    `json:"balance"`
	Locked                  bool     `json:"locked"`
	LockoutRemainingSeconds int64    `json:"lockoutRemainingSeconds"`
	Unlocked                []string `json:"unlocked"`
}

type DeltaRequest struct {
	EventID string `json:"eventId"`
	Amount  int64  `json:"amount"`
}

type DeltaResponse struct {
	NewBalance int64 `json:"newBalance"`
	Locked     bool  `json:"locked"`
	Replayed   bool  `json:"replayed,omitempty"`
}

type RestoreResponse struct {
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message"`
}

type LevelRequest struct {
	EventID string `json:"eventId"`
	GameID  string `json:"gameId"`
	IsWin   bool   `json:"isWin"`
}

type LevelResponse struct {
	NewBalance      int64 `json:"newBalance"`
	Locked          bool  `json:"locked"`
	FirstTimeUnlock bool  `json:"firstTimeUnlock"`
	Replayed        bool  `json:"replayed,omitempty"`
}

type UnlockRequest struct {
	GameID string `json:"gameId"`
}

type UnlockResponse struct {
	ContentID string `json:"contentId"`
	FirstTime bool   `json:"firstTime"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Push message types sent over the player WebSocket.
const (
	TypePlayerState = "player_state"
)

// StateEvent is pushed to a player's WebSocket subscribers after a change.
type StateEvent struct {
	Type     string `json:"type"`
	Cause    string `json:"cause"`
	PlayerID uint64 `json:"playerId"`
	Balance  int64  `json:"balance"`
	Locked   bool   `json:"locked"`
	// ContentID is set when the change unlocked content.
	ContentID string `json:"contentId,omitempty"`
}
