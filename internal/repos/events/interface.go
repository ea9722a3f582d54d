package events

import (
	"database/sql"
	"errors"
)

var ErrDuplicateEvent = errors.New("duplicate reward event")

// Events is the ledger of applied reward event ids. It makes balance
// mutations exactly-once per event id.
type Events interface {
	Insert(tx *sql.Tx, eventID string, playerID uint64, amount int64) error
}
