// Package repositories implements the dossier repositories on pgx.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/turtacn/dossier-engine/pkg/errors"
	"github.com/turtacn/dossier-engine/pkg/types/common"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// dbError maps driver errors onto application codes: no rows becomes
// notFound, a unique violation becomes a conflict.
func dbError(err error, notFound apperrors.ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.New(notFound, msg+": not found")
	}
	if constraint, ok := isUniqueViolation(err); ok {
		return apperrors.Conflict(msg + ": duplicate").WithDetail(constraint).WithCause(err)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, msg)
}

// sendBatch runs b and reports the first failing statement.
func sendBatch(ctx context.Context, q Querier, b *pgx.Batch, msg string) error {
	if b.Len() == 0 {
		return nil
	}
	br := q.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return dbError(err, apperrors.CodeNotFound, msg)
		}
	}
	return dbError(br.Close(), apperrors.CodeNotFound, msg)
}

// Nullable column helpers.

func nullID(id *common.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func idPtr(s *string) *common.ID {
	if s == nil {
		return nil
	}
	id := common.ID(*s)
	return &id
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// dateOnly keeps DATE columns in UTC at midnight as the calendar expects.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}
