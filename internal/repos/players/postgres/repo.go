package players

import (
	"database/sql"

	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

var _ players.Players = (*playersRepo)(nil)

type playersRepo struct{ db *sql.DB }

func New(db *sql.DB) *playersRepo {
	return &playersRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (players.Player, error) {
	var (
		p     players.Player
		until sql.NullTime
	)

	err := row.Scan(&p.ID, &p.Balance, &p.Locked, &until)
	if err != nil {
		return players.Player{}, err
	}

	if until.Valid {
		t := until.Time
		p.LockedUntil = &t
	}

	return p, nil
}
