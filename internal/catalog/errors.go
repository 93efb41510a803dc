package catalog

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNotFound reports whether the error means the row does not exist (or is
// soft-deleted, which reads the same through the store's filters).
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
