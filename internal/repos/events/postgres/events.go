package events

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/kpeconomy/internal/infra/pgutils"
	"github.com/fastprodman/kpeconomy/internal/repos/events"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

var _ events.Events = (*eventsRepo)(nil)

type eventsRepo struct{ db *sql.DB }

func New(db *sql.DB) *eventsRepo {
	return &eventsRepo{db: db}
}

// Insert records the event. Ids are scoped per player. A repeated id leaves
// the transaction usable and returns ErrDuplicateEvent.
func (r *eventsRepo) Insert(tx *sql.Tx, eventID string, playerID uint64, amount int64) error {
	res, err := tx.Exec(`
		INSERT INTO reward_events (event_id, player_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, event_id) DO NOTHING
	`, eventID, playerID, amount)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return players.ErrPlayerNotFound
		}

		return fmt.Errorf("insert event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return events.ErrDuplicateEvent
	}

	return nil
}
