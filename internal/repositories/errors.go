package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row exists for the provided identifier.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write lost a race: the row changed between read and write.
	ErrConflict = errors.New("conflict: case status changed concurrently")
	// ErrStoreUnavailable wraps driver, network and timeout failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRejected means the store refused the values themselves (constraint or
	// data exception). Retrying the same write fails the same way.
	ErrRejected = errors.New("rejected by store")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isDataError(pgErr.Code) {
		return fmt.Errorf("%w: %s: %s (%s)", ErrRejected, op, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// isDataError reports SQLSTATE class 22 (data exception) and class 23
// (integrity constraint violation).
func isDataError(code string) bool {
	return strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23")
}
