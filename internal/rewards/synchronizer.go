// Package rewards turns finished mini-game sessions into balance changes and
// content unlocks.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fastprodman/kpeconomy/internal/catalog"
	"github.com/fastprodman/kpeconomy/internal/economy"
	"github.com/fastprodman/kpeconomy/internal/unlocks"
)

// Economy is the subset of *economy.Controller the synchronizer drives.
type Economy interface {
	ApplyDelta(ctx context.Context, eventID string, amount int64) (economy.DeltaResult, error)
	CompleteLevel(ctx context.Context, req economy.LevelRequest, amount int64) (economy.LevelResult, error)
	Refresh(ctx context.Context) (economy.RemoteState, error)
	Seed(s economy.State)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Synchronizer) { s.log = l } }

// WithServerCompletion settles content-targeted events with the remote's
// complete-level call instead of a delta plus a local unlock.
func WithServerCompletion(on bool) Option { return func(s *Synchronizer) { s.serverCompletion = on } }

// Synchronizer applies reward events. It is the only writer of the unlock
// registry.
type Synchronizer struct {
	econ             Economy
	registry         *unlocks.Registry
	catalog          *catalog.Catalog
	log              *slog.Logger
	serverCompletion bool

	mu      sync.Mutex
	handled map[string]struct{}
}

func New(econ Economy, registry *unlocks.Registry, cat *catalog.Catalog, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		econ:     econ,
		registry: registry,
		catalog:  cat,
		log:      slog.Default(),
		handled:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HandleOutcome applies ev and classifies the result. The returned error is
// non-nil when the economy rejected the event (nothing changed, NoOp) or a
// remote write failed after the local update (classification still valid,
// error matches economy.ErrSyncFailure).
func (s *Synchronizer) HandleOutcome(ctx context.Context, ev RewardEvent) (Classification, error) {
	if ev.Amount == 0 {
		return NoOp, nil
	}

	if !s.claim(ev.ID) {
		s.log.Warn("reward event rejected", "event_id", ev.ID, "error", ErrDuplicateOutcome)

		return NoOp, fmt.Errorf("event %s: %w", ev.ID, ErrDuplicateOutcome)
	}

	game, content, canUnlock := s.resolve(ev)
	if game != nil {
		ev.Amount = game.Bound(ev.Amount)
	}

	if s.serverCompletion && canUnlock {
		return s.completeRemotely(ctx, ev, content)
	}

	res, err := s.econ.ApplyDelta(ctx, ev.ID, ev.Amount)
	if err != nil && !errors.Is(err, economy.ErrSyncFailure) {
		s.release(ev.ID)

		return NoOp, fmt.Errorf("apply reward: %w", err)
	}

	syncErr := err

	if ev.Amount < 0 {
		if res.Locked {
			return PenaltyLockout, syncErr
		}

		return Penalty, syncErr
	}

	if !canUnlock {
		return GenericReward, syncErr
	}

	outcome, err := s.registry.TryUnlock(ctx, content.ID, ev.SourceGameID)
	if err != nil {
		s.log.Warn("unlock evaluation failed, reward kept", "event_id", ev.ID, "content_id", content.ID, "error", err)

		return GenericReward, errors.Join(syncErr, &economy.SyncError{Op: "persist unlock", Err: err})
	}

	return classifyUnlock(outcome), syncErr
}

// Refresh reconciles the economy and the unlock registry with the remote.
func (s *Synchronizer) Refresh(ctx context.Context) (economy.RemoteState, error) {
	rs, err := s.econ.Refresh(ctx)
	if err != nil {
		return rs, fmt.Errorf("refresh: %w", err)
	}

	s.registry.Reconcile(rs.Unlocked)

	return rs, nil
}

// Seed installs cached state for display until the first Refresh.
func (s *Synchronizer) Seed(state economy.State, unlocked []string) {
	s.econ.Seed(state)
	s.registry.Reconcile(unlocked)
}

// Records returns the registry contents.
func (s *Synchronizer) Records() []unlocks.Record { return s.registry.Snapshot() }

// UnlockedIDs returns the unlocked content ids.
func (s *Synchronizer) UnlockedIDs() []string { return s.registry.UnlockedIDs() }

func (s *Synchronizer) completeRemotely(ctx context.Context, ev RewardEvent, content catalog.Content) (Classification, error) {
	req := economy.LevelRequest{
		EventID:   ev.ID,
		ContentID: content.ID,
		GameID:    ev.SourceGameID,
		IsWin:     ev.Amount > 0,
	}

	res, err := s.econ.CompleteLevel(ctx, req, ev.Amount)
	if err != nil {
		if !errors.Is(err, economy.ErrSyncFailure) {
			s.release(ev.ID)

			return NoOp, fmt.Errorf("complete level: %w", err)
		}

		if ev.Amount < 0 {
			if res.Locked {
				return PenaltyLockout, err
			}

			return Penalty, err
		}

		return GenericReward, err
	}

	if ev.Amount < 0 {
		if res.Locked {
			return PenaltyLockout, nil
		}

		return Penalty, nil
	}

	if res.FirstTimeUnlock {
		_, merr := s.registry.MarkUnlocked(content.ID)
		if merr != nil {
			return GenericReward, merr
		}

		return FirstUnlock, nil
	}

	rec, lerr := s.registry.Lookup(content.ID)
	if lerr == nil && rec.Unlocked {
		return ReplayAlreadyUnlocked, nil
	}

	if content.RequiredGameID != ev.SourceGameID {
		return WrongGameReward, nil
	}

	// The remote is authoritative: a matching win that did not unlock means
	// it was already unlocked.
	_, merr := s.registry.MarkUnlocked(content.ID)
	if merr != nil {
		return GenericReward, merr
	}

	return ReplayAlreadyUnlocked, nil
}

// resolve looks up the event's game and content. canUnlock is false when
// the event has no target or references ids the catalog does not know.
func (s *Synchronizer) resolve(ev RewardEvent) (*catalog.Game, catalog.Content, bool) {
	var game *catalog.Game

	g, err := s.catalog.Game(ev.SourceGameID)
	if err != nil {
		s.log.Warn("reward from unknown game, unlock skipped", "event_id", ev.ID, "error", err)
	} else {
		game = &g
	}

	if ev.TargetContentID == "" {
		return game, catalog.Content{}, false
	}

	content, err := s.catalog.Content(ev.TargetContentID)
	if err != nil {
		s.log.Warn("reward targets unknown content, unlock skipped", "event_id", ev.ID, "error", err)

		return game, catalog.Content{}, false
	}

	return game, content, game != nil
}

func (s *Synchronizer) claim(id string) bool {
	if id == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.handled[id]; dup {
		return false
	}

	s.handled[id] = struct{}{}

	return true
}

func (s *Synchronizer) release(id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	delete(s.handled, id)
	s.mu.Unlock()
}

func classifyUnlock(o unlocks.Outcome) Classification {
	switch o {
	case unlocks.Unlocked:
		return FirstUnlock
	case unlocks.AlreadyUnlocked:
		return ReplayAlreadyUnlocked
	case unlocks.WrongGame:
		return WrongGameReward
	default:
		return GenericReward
	}
}
