package players

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/kpeconomy/internal/infra/pgtestutil"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

func TestPlayers_Get_TableDriven(t *testing.T) {
	t.Parallel()

	until := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	type tc struct {
		name     string
		seed     func(db *sql.DB, t *testing.T)
		playerID uint64
		want     players.Player
		wantErr  error
	}

	tests := []tc{
		{
			name: "ok_active_player",
			seed: func(db *sql.DB, t *testing.T) {
				_, err := db.Exec(`INSERT INTO players (id, balance) VALUES (1, 100)`)
				if err != nil {
					t.Fatalf("seed player: %v", err)
				}
			},
			playerID: 1,
			want:     players.Player{ID: 1, Balance: 100},
		},
		{
			name: "ok_locked_player",
			seed: func(db *sql.DB, t *testing.T) {
				_, err := db.Exec(`
					INSERT INTO players (id, balance, locked, locked_until)
					VALUES (2, 0, TRUE, $1)
				`, until)
				if err != nil {
					t.Fatalf("seed player: %v", err)
				}
			},
			playerID: 2,
			want:     players.Player{ID: 2, Balance: 0, Locked: true, LockedUntil: &until},
		},
		{
			name:     "error_player_not_found",
			playerID: 999,
			wantErr:  players.ErrPlayerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			if tt.seed != nil {
				tt.seed(db, t)
			}

			repo := New(db)

			got, err := repo.Get(t.Context(), tt.playerID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: want %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assertPlayer(t, tt.want, got)
		})
	}
}

func assertPlayer(t *testing.T, want, got players.Player) {
	t.Helper()

	if got.ID != want.ID || got.Balance != want.Balance || got.Locked != want.Locked {
		t.Fatalf("player: want %+v, got %+v", want, got)
	}

	switch {
	case want.LockedUntil == nil && got.LockedUntil != nil:
		t.Fatalf("locked_until: want nil, got %v", *got.LockedUntil)
	case want.LockedUntil != nil && got.LockedUntil == nil:
		t.Fatalf("locked_until: want %v, got nil", *want.LockedUntil)
	case want.LockedUntil != nil && !want.LockedUntil.Equal(*got.LockedUntil):
		t.Fatalf("locked_until: want %v, got %v", *want.LockedUntil, *got.LockedUntil)
	}
}
