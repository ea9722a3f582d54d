package economy

import (
	"errors"
	"time"
)

var ErrWrongGame = errors.New("game does not unlock this content")

// Config holds the server-side economy constants.
type Config struct {
	RestoreFloor    int64
	LockoutDuration time.Duration
}

type PlayerState struct {
	PlayerID         uint64
	Balance          int64
	Locked           bool
	LockoutRemaining time.Duration
	Unlocked         []string
}

type DeltaResult struct {
	NewBalance int64
	Locked     bool
	Replayed   bool
}

type RestoreResult struct {
	NewBalance int64
	Message    string
}

type LevelCompletion struct {
	EventID   string
	ContentID string
	GameID    string
	IsWin     bool
}

type LevelResult struct {
	NewBalance      int64
	Locked          bool
	FirstTimeUnlock bool
	Replayed        bool
}
