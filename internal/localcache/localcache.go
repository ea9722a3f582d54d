// Package localcache keeps the last known player economy on disk so a new
// session has something to show before its first refresh.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fastprodman/kpeconomy/internal/economy"
)

var ErrNoCache = errors.New("no cached state")

// Snapshot is the cached view of one player.
type Snapshot struct {
	PlayerID         uint64        `json:"playerId"`
	Balance          int64         `json:"balance"`
	Locked           bool          `json:"locked"`
	LockoutRemaining time.Duration `json:"lockoutRemaining"`
	Unlocked         []string      `json:"unlocked"`
	SavedAt          time.Time     `json:"savedAt"`
}

// State converts the snapshot to a controller state.
func (s Snapshot) State() economy.State {
	st := economy.State{Balance: s.Balance, Lock: economy.Active}
	if s.Locked {
		st.Lock = economy.Locked
		st.LockoutRemaining = s.LockoutRemaining
	}

	return st
}

// FromState builds a snapshot for playerID.
func FromState(playerID uint64, st economy.State, unlocked []string, now time.Time) Snapshot {
	return Snapshot{
		PlayerID:         playerID,
		Balance:          st.Balance,
		Locked:           st.Locked(),
		LockoutRemaining: st.LockoutRemaining,
		Unlocked:         unlocked,
		SavedAt:          now.UTC(),
	}
}

// Store reads and writes a snapshot file.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the cached snapshot, or ErrNoCache if none was saved.
func (s *Store) Load() (Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNoCache
		}

		return Snapshot{}, fmt.Errorf("read cache: %w", err)
	}

	var snap Snapshot

	err = json.Unmarshal(raw, &snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode cache: %w", err)
	}

	return snap, nil
}

// Save replaces the cached snapshot atomically.
func (s *Store) Save(snap Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)

	err = os.MkdirAll(dir, 0o700)
	if err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kpcache-*")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	//nolint:errcheck
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(raw)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}

	err = os.Rename(tmp.Name(), s.path)
	if err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}

	return nil
}
