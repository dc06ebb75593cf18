package library

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrIneligible         = errors.New("member is not eligible to borrow")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Error is a request-scoped domain failure. Error() returns a message that can
// be shown to the user as is.
type Error struct {
	Reason string
	kinds  []error
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() []error { return e.kinds }

func newError(kinds []error, format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), kinds: kinds}
}

func notFound(format string, args ...any) error {
	return newError([]error{ErrNotFound}, format, args...)
}

func ineligible(format string, args ...any) error {
	return newError([]error{ErrIneligible}, format, args...)
}

func conflict(format string, args ...any) error {
	return newError([]error{ErrConflict}, format, args...)
}

func validation(format string, args ...any) error {
	return newError([]error{ErrValidation}, format, args...)
}

// Reason extracts the user-facing message of a domain error, or "" when err
// is an infrastructure failure.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// isUniqueViolation recognises unique-constraint failures from every driver
// the store can run on.
func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
