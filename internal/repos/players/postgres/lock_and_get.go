package players

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

func (r *playersRepo) LockAndGet(tx *sql.Tx, playerID uint64) (players.Player, error) {
	p, err := scanPlayer(tx.QueryRow(`
		SELECT id, balance, locked, locked_until
		FROM players
		WHERE id = $1
		FOR UPDATE
	`, playerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return players.Player{}, players.ErrPlayerNotFound
		}

		return players.Player{}, fmt.Errorf("lock/get player: %w", err)
	}

	return p, nil
}
