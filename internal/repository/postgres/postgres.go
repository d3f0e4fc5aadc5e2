package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgUniqueViolation = "23505"

// translateUniqueViolation converts a pg unique-violation into a typed
// duplicate-field error using the constraint-to-field mapping. Other errors
// pass through unchanged.
func translateUniqueViolation(err error, constraints map[string]string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if field, ok := constraints[pgErr.ConstraintName]; ok {
			return &repository.DuplicateFieldError{Field: field}
		}
		return repository.ErrDuplicate
	}

	return err
}
