package rewards

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fastprodman/kpeconomy/internal/catalog"
)

// Session is one launched mini-game. It reports exactly one outcome.
type Session struct {
	sync      *Synchronizer
	game      catalog.Game
	eventID   string
	contentID string
	done      atomic.Bool
}

// Begin launches a session of gameID, optionally aimed at unlocking
// contentID. The event id used for de-duplication is minted here.
func (s *Synchronizer) Begin(gameID, contentID string) (*Session, error) {
	g, err := s.catalog.Game(gameID)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}

	return &Session{
		sync:      s,
		game:      g,
		eventID:   uuid.NewString(),
		contentID: contentID,
	}, nil
}

// EventID is the idempotency key this session's outcome will carry.
func (ss *Session) EventID() string { return ss.eventID }

// Win reports a won session worth the game's configured reward.
func (ss *Session) Win(ctx context.Context) (Classification, error) {
	return ss.Finish(ctx, ss.game.Reward)
}

// Lose reports a lost session costing the game's configured penalty.
func (ss *Session) Lose(ctx context.Context) (Classification, error) {
	return ss.Finish(ctx, -ss.game.Penalty)
}

// Close ends the session without a scored result; no event is produced.
func (ss *Session) Close() error {
	if !ss.done.CompareAndSwap(false, true) {
		return ErrDuplicateOutcome
	}

	return nil
}

// Finish reports a scored result. Only the first terminal call on a session
// is accepted.
func (ss *Session) Finish(ctx context.Context, amount int64) (Classification, error) {
	if !ss.done.CompareAndSwap(false, true) {
		return NoOp, fmt.Errorf("session %s: %w", ss.eventID, ErrDuplicateOutcome)
	}

	return ss.sync.HandleOutcome(ctx, RewardEvent{
		ID:              ss.eventID,
		Amount:          amount,
		SourceGameID:    ss.game.ID,
		TargetContentID: ss.contentID,
	})
}
