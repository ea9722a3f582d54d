package economy

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSyncFailure            = errors.New("sync failure")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrClosed                 = errors.New("economy session closed")

	ErrNotLocked    = fmt.Errorf("%w: restore requested while active", ErrInvalidStateTransition)
	ErrPlayerLocked = fmt.Errorf("%w: player is locked out", ErrInvalidStateTransition)
	ErrStaleState   = fmt.Errorf("%w: cached state not refreshed", ErrInvalidStateTransition)
)

// SyncError reports a failed call to the remote economy service. It matches
// both ErrSyncFailure and the underlying cause with errors.Is.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrSyncFailure, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{ErrSyncFailure, e.Err}
}

// LockState is derived from the balance by the controller.
type LockState int

const (
	Active LockState = iota
	Locked
)

func (l LockState) String() string {
	if l == Locked {
		return "locked"
	}

	return "active"
}

// State is the player's economy as the session currently sees it.
type State struct {
	Balance          int64
	Lock             LockState
	LockoutRemaining time.Duration
}

// Locked reports whether the player is locked out.
func (s State) Locked() bool { return s.Lock == Locked }

// RemoteState is the authoritative state returned by the remote service.
type RemoteState struct {
	Balance          int64
	Locked           bool
	LockoutRemaining time.Duration
	Unlocked         []string
}

type DeltaResult struct {
	NewBalance int64
	Locked     bool
	// Replayed is set when the remote had already applied this event id.
	Replayed bool
}

type RestoreResult struct {
	NewBalance int64
	Message    string
}

// LevelRequest asks the remote to settle a finished level in one step.
type LevelRequest struct {
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

// Config holds the tunable economy constants.
type Config struct {
	// Floor is the lowest balance a delta can produce; reaching it locks.
	Floor int64
	// RestoreFloor is the balance granted when a lockout ends.
	RestoreFloor int64
	// LockoutDuration is how long a depleted player stays locked.
	LockoutDuration time.Duration
	// RestoreTimeout bounds the restore call made on lockout expiry.
	RestoreTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Floor:           0,
		RestoreFloor:    50,
		LockoutDuration: 10 * time.Second,
		RestoreTimeout:  10 * time.Second,
	}
}
