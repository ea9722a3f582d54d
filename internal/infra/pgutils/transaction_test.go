package pgutils

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/fastprodman/kpeconomy/internal/infra/pgtestutil"
)

func countPlayers(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int

	err := db.QueryRow(`SELECT COUNT(*) FROM players`).Scan(&n)
	if err != nil {
		t.Fatalf("count players: %v", err)
	}

	return n
}

func TestWithTx(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		fn        func(tx *sql.Tx) error
		wantErr   error
		wantPanic bool
		wantRows  int
	}{
		{
			name: "commit",
			fn: func(tx *sql.Tx) error {
				_, err := tx.Exec(`INSERT INTO players (id, balance) VALUES (1, 10)`)
				return err
			},
			wantRows: 1,
		},
		{
			name: "rollback_on_error",
			fn: func(tx *sql.Tx) error {
				_, err := tx.Exec(`INSERT INTO players (id, balance) VALUES (1, 10)`)
				if err != nil {
					return err
				}

				return errBoom
			},
			wantErr: errBoom,
		},
		{
			name: "rollback_on_panic",
			fn: func(tx *sql.Tx) error {
				_, _ = tx.Exec(`INSERT INTO players (id, balance) VALUES (1, 10)`)
				panic("boom")
			},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			func() {
				defer func() {
					p := recover()
					if (p != nil) != tt.wantPanic {
						t.Fatalf("panic: want %v, got %v", tt.wantPanic, p)
					}
				}()

				err := WithTx(t.Context(), db, tt.fn)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: want %v, got %v", tt.wantErr, err)
				}
			}()

			got := countPlayers(t, db)
			if got != tt.wantRows {
				t.Fatalf("rows: want %d, got %d", tt.wantRows, got)
			}
		})
	}
}
