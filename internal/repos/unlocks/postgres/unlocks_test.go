package unlocks

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fastprodman/kpeconomy/internal/infra/pgtestutil"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
)

func TestUnlocks_InsertAndList(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO players (id, balance) VALUES (1, 100), (2, 100)`)
	if err != nil {
		t.Fatalf("seed players: %v", err)
	}

	repo := New(db)

	steps := []struct {
		playerID  uint64
		contentID string
		gameID    string
		wantFirst bool
	}{
		{playerID: 1, contentID: "C1", gameID: "word-scramble", wantFirst: true},
		{playerID: 1, contentID: "C1", gameID: "word-scramble", wantFirst: false},
		{playerID: 1, contentID: "C2", gameID: "timing-bar", wantFirst: true},
		{playerID: 2, contentID: "C1", gameID: "word-scramble", wantFirst: true},
	}

	for _, s := range steps {
		tx, err := db.BeginTx(t.Context(), nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}

		first, err := repo.Insert(tx, s.playerID, s.contentID, s.gameID)
		if err != nil {
			_ = tx.Rollback()
			t.Fatalf("insert %d/%s: %v", s.playerID, s.contentID, err)
		}

		err = tx.Commit()
		if err != nil {
			t.Fatalf("commit: %v", err)
		}

		if first != s.wantFirst {
			t.Fatalf("insert %d/%s: want first=%v, got %v", s.playerID, s.contentID, s.wantFirst, first)
		}
	}

	got, err := repo.List(t.Context(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if !reflect.DeepEqual(got, []string{"C1", "C2"}) {
		t.Fatalf("player 1 unlocks: got %v", got)
	}

	got, err = repo.List(t.Context(), 3)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("player 3 unlocks: want none, got %v", got)
	}
}

func TestUnlocks_Insert_UnknownPlayer(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	//nolint:errcheck
	defer tx.Rollback()

	_, err = repo.Insert(tx, 999, "C1", "word-scramble")
	if !errors.Is(err, players.ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
}
