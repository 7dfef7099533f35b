package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/tenantgate/internal/domain"
)

// SQLSTATE codes the adapter translates into domain errors.
const (
	codeUniqueViolation = "23505"
	codeDuplicateSchema = "42P06"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrapErr maps pgx.ErrNoRows to domain.ErrNotFound and unique violations to
// domain.ErrConflict. Anything else is wrapped unchanged.
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case pgCode(err) == codeUniqueViolation, pgCode(err) == codeDuplicateSchema:
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return wrapErr(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}
