package players

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerLocked   = errors.New("player locked out")
	ErrNotLocked      = errors.New("player not locked")
)

// Player is a row of the players table.
type Player struct {
	ID      uint64
	Balance int64
	Locked  bool
	// LockedUntil is when the current lockout ends; nil while active.
	LockedUntil *time.Time
}

// LockoutRemaining is the time left on the lockout at now, never negative.
func (p Player) LockoutRemaining(now time.Time) time.Duration {
	if !p.Locked || p.LockedUntil == nil {
		return 0
	}

	left := p.LockedUntil.Sub(now)
	if left < 0 {
		return 0
	}

	return left
}

type Players interface {
	Get(ctx context.Context, playerID uint64) (Player, error)
	LockAndGet(tx *sql.Tx, playerID uint64) (Player, error)
	Save(tx *sql.Tx, p Player) error
}
