package players

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

// Save writes balance and lock columns. The balance check constraint rejects
// negative values.
func (r *playersRepo) Save(tx *sql.Tx, p players.Player) error {
	var until sql.NullTime
	if p.LockedUntil != nil {
		until = sql.NullTime{Time: *p.LockedUntil, Valid: true}
	}

	res, err := tx.Exec(`
		UPDATE players
		SET balance = $2, locked = $3, locked_until = $4
		WHERE id = $1
	`, p.ID, p.Balance, p.Locked, until)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return players.ErrPlayerNotFound
	}

	return nil
}
