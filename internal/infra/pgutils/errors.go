package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ForeignKeyViolation is the SQLSTATE raised when a referenced row is missing.
const ForeignKeyViolation = "23503"

// IsForeignKeyViolation reports whether err wraps a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == ForeignKeyViolation
}
