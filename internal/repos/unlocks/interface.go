package unlocks

import (
	"context"
	"database/sql"
)

// Unlocks persists which content items a player has unlocked.
type Unlocks interface {
	// Insert records the unlock and reports whether this call created it.
	Insert(tx *sql.Tx, playerID uint64, contentID, gameID string) (bool, error)
	List(ctx context.Context, playerID uint64) ([]string, error)
}
