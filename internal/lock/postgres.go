package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLocker implements SessionLocker on a shared session_locks table.
//
// Acquisition is a single atomic conditional write: the insert wins only when
// no row exists or the existing row's TTL has expired. This is the property
// that keeps multiple engine instances sharing one database mutually exclusive.
type PostgresLocker struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

// NewPostgresLocker creates a Postgres-backed session locker.
func NewPostgresLocker(pool *pgxpool.Pool, ttl time.Duration, logger *zap.Logger) *PostgresLocker {
	return &PostgresLocker{
		pool:   pool,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire attempts to take the lock for sessionID, returning an ownership
// token on success and ErrLockBusy when a non-expired holder exists.
func (l *PostgresLocker) Acquire(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()

	const query = `
		INSERT INTO session_locks (session_id, token, acquired_at, expires_at)
		VALUES ($1, $2, now(), now() + $3)
		ON CONFLICT (session_id) DO UPDATE
		SET token = EXCLUDED.token,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE session_locks.expires_at < now()`

	tag, err := l.pool.Exec(ctx, query, sessionID, token, l.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock for session %s: %w", sessionID, err)
	}

	if tag.RowsAffected() == 0 {
		return "", ErrLockBusy
	}

	l.logger.Debug("session lock acquired",
		zap.String("session_id", sessionID),
		zap.Duration("ttl", l.ttl),
	)

	return token, nil
}

// Release gives up the lock. It is a compare-and-delete: the row is removed
// only when the token matches the current holder.
func (l *PostgresLocker) Release(ctx context.Context, sessionID, token string) error {
	const query = `DELETE FROM session_locks WHERE session_id = $1 AND token = $2`

	tag, err := l.pool.Exec(ctx, query, sessionID, token)
	if err != nil {
		return fmt.Errorf("failed to release lock for session %s: %w", sessionID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrLockNotHeld
	}

	l.logger.Debug("session lock released", zap.String("session_id", sessionID))

	return nil
}

// IsLocked reports whether a non-expired holder exists for sessionID.
func (l *PostgresLocker) IsLocked(ctx context.Context, sessionID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM session_locks
			WHERE session_id = $1 AND expires_at > now()
		)`

	var locked bool
	if err := l.pool.QueryRow(ctx, query, sessionID).Scan(&locked); err != nil {
		return false, fmt.Errorf("failed to check lock for session %s: %w", sessionID, err)
	}

	return locked, nil
}

// ForceRelease removes the lock regardless of holder. Administrative recovery
// path only.
func (l *PostgresLocker) ForceRelease(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM session_locks WHERE session_id = $1`

	if _, err := l.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to force-release lock for session %s: %w", sessionID, err)
	}

	l.logger.Warn("session lock force-released", zap.String("session_id", sessionID))

	return nil
}
