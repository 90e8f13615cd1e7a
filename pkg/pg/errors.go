package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotConfigured       = errors.New("pg: PG_CONN_URL is not set")
	ErrInvalidConfig       = errors.New("pg: invalid connection string")
	ErrUnavailable         = errors.New("pg: database is unavailable")
	ErrUnhealthy           = errors.New("pg: ping failed")
	ErrMigrationFailed     = errors.New("pg: failed to apply migrations")
	ErrMigrationsNotFound  = errors.New("pg: migrations directory not found")
	ErrMigrationsNotPassed = errors.New("pg: migrations filesystem or directory not provided")
)

// SQLSTATE codes the stores branch on.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// IsForeignKeyViolationError reports a foreign key violation.
func IsForeignKeyViolationError(err error) bool {
	return sqlState(err) == codeForeignKeyViolation
}

// ConstraintName returns the constraint a failed statement violated, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
