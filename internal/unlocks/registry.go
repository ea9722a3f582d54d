// Package unlocks tracks which catalog content a player has unlocked. A
// record flips from locked to unlocked at most once and never back.
package unlocks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fastprodman/kpeconomy/internal/catalog"
)

// Record is one content item's unlock state.
type Record struct {
	ContentID      string `json:"contentId"`
	RequiredGameID string `json:"requiredGameId"`
	Unlocked       bool   `json:"unlocked"`
}

// Outcome is the result of an unlock attempt.
type Outcome int

const (
	Unlocked Outcome = iota + 1
	AlreadyUnlocked
	WrongGame
)

func (o Outcome) String() string {
	switch o {
	case Unlocked:
		return "unlocked"
	case AlreadyUnlocked:
		return "already_unlocked"
	case WrongGame:
		return "wrong_game"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Persister durably records an unlock. firstTime is false when the store
// already held it; that answer wins over the local record.
type Persister interface {
	Unlock(ctx context.Context, contentID, gameID string) (firstTime bool, err error)
}

// Registry is the in-session view of the player's unlocks, seeded from the
// catalog.
type Registry struct {
	persister Persister
	log       *slog.Logger

	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// New seeds one locked record per catalog item.
func New(cat *catalog.Catalog, p Persister, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	items := cat.Items()

	r := &Registry{
		persister: p,
		log:       log,
		records:   make(map[string]*Record, len(items)),
		order:     make([]string, 0, len(items)),
	}

	for _, item := range items {
		r.records[item.ID] = &Record{ContentID: item.ID, RequiredGameID: item.RequiredGameID}
		r.order = append(r.order, item.ID)
	}

	return r
}

// Lookup returns the current record for contentID.
func (r *Registry) Lookup(contentID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[contentID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", catalog.ErrUnknownContent, contentID)
	}

	return *rec, nil
}

// TryUnlock evaluates and persists an unlock of contentID earned by gameID.
// The already-unlocked check happens under the registry lock at call time,
// and the lock is held through persistence so concurrent attempts on the
// same registry cannot both report Unlocked.
func (r *Registry) TryUnlock(ctx context.Context, contentID, gameID string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[contentID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", catalog.ErrUnknownContent, contentID)
	}

	if rec.Unlocked {
		return AlreadyUnlocked, nil
	}

	if rec.RequiredGameID != gameID {
		return WrongGame, nil
	}

	if r.persister != nil {
		firstTime, err := r.persister.Unlock(ctx, contentID, gameID)
		if err != nil {
			return 0, fmt.Errorf("persist unlock %s: %w", contentID, err)
		}

		if !firstTime {
			rec.Unlocked = true
			r.log.Info("content already unlocked remotely", "content_id", contentID)

			return AlreadyUnlocked, nil
		}
	}

	rec.Unlocked = true
	r.log.Info("content unlocked", "content_id", contentID, "game_id", gameID)

	return Unlocked, nil
}

// MarkUnlocked records an unlock already persisted elsewhere. It reports
// whether the record changed.
func (r *Registry) MarkUnlocked(contentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[contentID]
	if !ok {
		return false, fmt.Errorf("%w: %q", catalog.ErrUnknownContent, contentID)
	}

	if rec.Unlocked {
		return false, nil
	}

	rec.Unlocked = true

	return true, nil
}

// Reconcile marks every listed id unlocked. Records are never relocked.
func (r *Registry) Reconcile(unlocked []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range unlocked {
		rec, ok := r.records[id]
		if !ok {
			r.log.Warn("ignoring unlock for content missing from catalog", "content_id", id)
			continue
		}

		rec.Unlocked = true
	}
}

// Snapshot returns all records in catalog order.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}

	return out
}

// UnlockedIDs returns the sorted ids of unlocked content.
func (r *Registry) UnlockedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string

	for id, rec := range r.records {
		if rec.Unlocked {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}
