package unlocks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/kpeconomy/internal/infra/pgutils"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
	"github.com/fastprodman/kpeconomy/internal/repos/unlocks"
)

var _ unlocks.Unlocks = (*unlocksRepo)(nil)

type unlocksRepo struct{ db *sql.DB }

func New(db *sql.DB) *unlocksRepo {
	return &unlocksRepo{db: db}
}

func (r *unlocksRepo) Insert(tx *sql.Tx, playerID uint64, contentID, gameID string) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO content_unlocks (player_id, content_id, game_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, content_id) DO NOTHING
	`, playerID, contentID, gameID)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return false, players.ErrPlayerNotFound
		}

		return false, fmt.Errorf("insert unlock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

// List returns the player's unlocked content ids in unlock order.
func (r *unlocksRepo) List(ctx context.Context, playerID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT content_id
		FROM content_unlocks
		WHERE player_id = $1
		ORDER BY unlocked_at, content_id
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var id string

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate unlocks: %w", err)
	}

	return ids, nil
}
