package rewards

import (
	"errors"
	"fmt"
)

var ErrDuplicateOutcome = errors.New("duplicate outcome")

// RewardEvent is the single terminal report of a mini-game session.
type RewardEvent struct {
	// ID is minted when the session starts and de-duplicates retries.
	ID              string
	Amount          int64
	SourceGameID    string
	TargetContentID string
}

// Classification describes what a reward event did.
type Classification int

const (
	NoOp Classification = iota
	GenericReward
	FirstUnlock
	ReplayAlreadyUnlocked
	WrongGameReward
	Penalty
	// PenaltyLockout is a penalty that depleted the balance.
	PenaltyLockout
)

func (c Classification) String() string {
	switch c {
	case NoOp:
		return "no_op"
	case GenericReward:
		return "generic_reward"
	case FirstUnlock:
		return "first_unlock"
	case ReplayAlreadyUnlocked:
		return "replay_already_unlocked"
	case WrongGameReward:
		return "wrong_game_reward"
	case Penalty:
		return "penalty"
	case PenaltyLockout:
		return "penalty_lockout"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}
