package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isConflict reports whether err is a transient storage conflict that is
// safe to retry with the same inputs.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		// Extended codes such as SQLITE_BUSY_SNAPSHOT share the primary code's low byte.
		code := sqliteErr.Code & 0xff
		return code == sqlite3.ErrBusy || code == sqlite3.ErrLocked
	}
	return false
}

// inTransaction runs fn in a transaction, retrying storage conflicts up to
// maxAttempts times with linear backoff. fn must be safe to re-run.
func (s *entryService) inTransaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return asAppError(err)
		}

		logger.Component("ledger").Warnw("Ledger write conflicted",
			"op", op,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err,
		)
		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.ErrInternalServer, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}
	return apperrors.Wrap(apperrors.ErrStorageConflict, err)
}

func asAppError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
