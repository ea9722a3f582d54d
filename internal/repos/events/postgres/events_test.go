package events

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/kpeconomy/internal/infra/pgtestutil"
	"github.com/fastprodman/kpeconomy/internal/repos/events"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

func TestEvents_Insert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		seed     func(t *testing.T, db *sql.DB)
		eventID  string
		playerID uint64
		wantErr  error
	}{
		{
			name: "ok_insert",
			seed: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`INSERT INTO players (id, balance) VALUES ($1, $2)`, 1, 100)
				if err != nil {
					t.Fatalf("seed player: %v", err)
				}
			},
			eventID:  "ev_123",
			playerID: 1,
		},
		{
			name: "duplicate_event",
			seed: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`INSERT INTO players (id, balance) VALUES ($1, $2)`, 2, 100)
				if err != nil {
					t.Fatalf("seed player: %v", err)
				}
				_, err = db.Exec(`INSERT INTO reward_events (event_id, player_id, amount) VALUES ($1, $2, $3)`, "ev_dup", 2, 10)
				if err != nil {
					t.Fatalf("seed event: %v", err)
				}
			},
			eventID:  "ev_dup",
			playerID: 2,
			wantErr:  events.ErrDuplicateEvent,
		},
		{
			name: "same_id_other_player",
			seed: func(t *testing.T, db *sql.DB) {
				_, err := db.Exec(`INSERT INTO players (id, balance) VALUES (3, 100), (4, 100)`)
				if err != nil {
					t.Fatalf("seed players: %v", err)
				}
				_, err = db.Exec(`INSERT INTO reward_events (event_id, player_id, amount) VALUES ($1, $2, $3)`, "ev_shared", 3, 10)
				if err != nil {
					t.Fatalf("seed event: %v", err)
				}
			},
			eventID:  "ev_shared",
			playerID: 4,
		},
		{
			name:     "player_not_exist_fk_violation",
			eventID:  "ev_fk",
			playerID: 999,
			wantErr:  players.ErrPlayerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			repo := New(db)

			if tt.seed != nil {
				tt.seed(t, db)
			}

			tx, err := db.BeginTx(t.Context(), nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			//nolint:errcheck
			defer tx.Rollback()

			err = repo.Insert(tx, tt.eventID, tt.playerID, 25)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// A duplicate must not abort the surrounding transaction.
func TestEvents_Insert_DuplicateKeepsTxUsable(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO players (id, balance) VALUES (1, 100)`)
	if err != nil {
		t.Fatalf("seed player: %v", err)
	}

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	//nolint:errcheck
	defer tx.Rollback()

	err = repo.Insert(tx, "ev_once", 1, 5)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = repo.Insert(tx, "ev_once", 1, 5)
	if !errors.Is(err, events.ErrDuplicateEvent) {
		t.Fatalf("second insert: want ErrDuplicateEvent, got %v", err)
	}

	var n int

	err = tx.QueryRow(`SELECT COUNT(*) FROM reward_events WHERE player_id = 1`).Scan(&n)
	if err != nil {
		t.Fatalf("count after duplicate: %v", err)
	}

	if n != 1 {
		t.Fatalf("events: want 1, got %d", n)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}
