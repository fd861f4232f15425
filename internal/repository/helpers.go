package repository

import (
	"database/sql"
	"errors"

	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
)

// optional turns a single-row query result into (*T, error) where a
// missing row is (nil, nil). Any other failure is reported as a
// DATABASE_ERROR wrapping the driver error.
func optional[T any](row *T, err error) (*T, error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, apperrors.Database(err)
	}
	return row, nil
}
