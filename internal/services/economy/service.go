// Package economy is the authoritative player economy: KP balances, lockouts
// and content unlocks persisted in Postgres.
package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/kpeconomy/internal/catalog"
	"github.com/fastprodman/kpeconomy/internal/infra/pgutils"
	"github.com/fastprodman/kpeconomy/internal/repos/events"
	pgevents "github.com/fastprodman/kpeconomy/internal/repos/events/postgres"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
	pgplayers "github.com/fastprodman/kpeconomy/internal/repos/players/postgres"
	"github.com/fastprodman/kpeconomy/internal/repos/unlocks"
	pgunlocks "github.com/fastprodman/kpeconomy/internal/repos/unlocks/postgres"
)

type Service struct {
	db      *sql.DB
	players players.Players
	events  events.Events
	unlocks unlocks.Unlocks
	cat     *catalog.Catalog
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
}

func New(dbx *sql.DB, cat *catalog.Catalog, cfg Config) *Service {
	return &Service{
		db:      dbx,
		players: pgplayers.New(dbx),
		events:  pgevents.New(dbx),
		unlocks: pgunlocks.New(dbx),
		cat:     cat,
		cfg:     cfg,
		now:     time.Now,
		log:     slog.Default().With("component", "economy-service"),
	}
}

// GetState returns the player's balance, lockout and unlocked content.
func (s *Service) GetState(ctx context.Context, playerID uint64) (PlayerState, error) {
	p, err := s.players.Get(ctx, playerID)
	if err != nil {
		return PlayerState{}, fmt.Errorf("get player: %w", err)
	}

	ids, err := s.unlocks.List(ctx, playerID)
	if err != nil {
		return PlayerState{}, fmt.Errorf("list unlocks: %w", err)
	}

	return PlayerState{
		PlayerID:         p.ID,
		Balance:          p.Balance,
		Locked:           p.Locked,
		LockoutRemaining: p.LockoutRemaining(s.now()),
		Unlocked:         ids,
	}, nil
}

// ApplyDelta runs in a single DB transaction:
//
// 1) Lock the player row (FOR UPDATE).
// 2) Record the event id; a repeat returns the current state untouched.
// 3) Reject while locked out.
// 4) Clamp at zero, locking when a loss empties the balance.
func (s *Service) ApplyDelta(ctx context.Context, playerID uint64, eventID string, amount int64) (DeltaResult, error) {
	var res DeltaResult

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, replayed, err := s.applyEvent(tx, playerID, eventID, amount)
		if err != nil {
			return err
		}

		res = DeltaResult{NewBalance: p.Balance, Locked: p.Locked, Replayed: replayed}

		return nil
	})
	if err != nil {
		return DeltaResult{}, fmt.Errorf("apply delta: %w", err)
	}

	return res, nil
}

// Restore ends a lockout, setting the balance to the restore floor.
func (s *Service) Restore(ctx context.Context, playerID uint64) (RestoreResult, error) {
	var res RestoreResult

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.players.LockAndGet(tx, playerID)
		if err != nil {
			return fmt.Errorf("lock and get player: %w", err)
		}

		if !p.Locked {
			return players.ErrNotLocked
		}

		p.Balance = s.cfg.RestoreFloor
		p.Locked = false
		p.LockedUntil = nil

		err = s.players.Save(tx, p)
		if err != nil {
			return fmt.Errorf("save player: %w", err)
		}

		res = RestoreResult{
			NewBalance: p.Balance,
			Message:    fmt.Sprintf("energy restored to %d KP", p.Balance),
		}

		return nil
	})
	if err != nil {
		return RestoreResult{}, fmt.Errorf("restore: %w", err)
	}

	s.log.Info("lockout restored", "player_id", playerID, "balance", res.NewBalance)

	return res, nil
}

// CompleteLevel settles a finished level: the game's reward or penalty is
// applied like ApplyDelta and a win with the required game unlocks the content.
func (s *Service) CompleteLevel(ctx context.Context, playerID uint64, lc LevelCompletion) (LevelResult, error) {
	item, err := s.cat.Content(lc.ContentID)
	if err != nil {
		return LevelResult{}, fmt.Errorf("complete level: %w", err)
	}

	game, err := s.cat.Game(lc.GameID)
	if err != nil {
		return LevelResult{}, fmt.Errorf("complete level: %w", err)
	}

	var res LevelResult

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, replayed, err := s.applyEvent(tx, playerID, lc.EventID, game.Outcome(lc.IsWin))
		if err != nil {
			return err
		}

		res = LevelResult{NewBalance: p.Balance, Locked: p.Locked, Replayed: replayed}

		if replayed || !lc.IsWin || lc.GameID != item.RequiredGameID {
			return nil
		}

		first, err := s.unlocks.Insert(tx, playerID, item.ID, lc.GameID)
		if err != nil {
			return fmt.Errorf("insert unlock: %w", err)
		}

		res.FirstTimeUnlock = first

		return nil
	})
	if err != nil {
		return LevelResult{}, fmt.Errorf("complete level: %w", err)
	}

	if res.FirstTimeUnlock {
		s.log.Info("content unlocked", "player_id", playerID, "content_id", lc.ContentID, "game_id", lc.GameID)
	}

	return res, nil
}

// Unlock persists an unlock decided by the client. It is idempotent and
// reports whether this call created the unlock.
func (s *Service) Unlock(ctx context.Context, playerID uint64, contentID, gameID string) (bool, error) {
	item, err := s.cat.Content(contentID)
	if err != nil {
		return false, fmt.Errorf("unlock: %w", err)
	}

	_, err = s.cat.Game(gameID)
	if err != nil {
		return false, fmt.Errorf("unlock: %w", err)
	}

	if item.RequiredGameID != gameID {
		return false, fmt.Errorf("unlock %s with %s: %w", contentID, gameID, ErrWrongGame)
	}

	var first bool

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.players.LockAndGet(tx, playerID)
		if err != nil {
			return fmt.Errorf("lock and get player: %w", err)
		}

		first, err = s.unlocks.Insert(tx, playerID, contentID, gameID)
		if err != nil {
			return fmt.Errorf("insert unlock: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("unlock: %w", err)
	}

	if first {
		s.log.Info("content unlocked", "player_id", playerID, "content_id", contentID, "game_id", gameID)
	}

	return first, nil
}

// applyEvent is the shared body of ApplyDelta and CompleteLevel. It must run
// inside tx.
func (s *Service) applyEvent(tx *sql.Tx, playerID uint64, eventID string, amount int64) (players.Player, bool, error) {
	p, err := s.players.LockAndGet(tx, playerID)
	if err != nil {
		return players.Player{}, false, fmt.Errorf("lock and get player: %w", err)
	}

	err = s.events.Insert(tx, eventID, playerID, amount)
	if errors.Is(err, events.ErrDuplicateEvent) {
		s.log.Info("reward event replayed", "player_id", playerID, "event_id", eventID)

		return p, true, nil
	}

	if err != nil {
		return players.Player{}, false, fmt.Errorf("insert event: %w", err)
	}

	if p.Locked {
		return players.Player{}, false, players.ErrPlayerLocked
	}

	p.Balance = max(p.Balance+amount, 0)

	if amount < 0 && p.Balance == 0 {
		until := s.now().Add(s.cfg.LockoutDuration)
		p.Locked = true
		p.LockedUntil = &until

		s.log.Info("player locked out", "player_id", playerID, "until", until)
	}

	err = s.players.Save(tx, p)
	if err != nil {
		return players.Player{}, false, fmt.Errorf("save player: %w", err)
	}

	return p, false, nil
}
