package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memoryLockEntry struct {
	token      string
	acquiredAt time.Time
	expiresAt  time.Time
}

// MemoryLocker implements SessionLocker in process memory.
//
// It exists for tests and for deployments that explicitly run a single engine
// instance (lock.backend = "memory"). It provides no cross-process exclusion
// and is never used as a fallback for the Postgres backend.
type MemoryLocker struct {
	mu     sync.Mutex
	locks  map[string]memoryLockEntry
	ttl    time.Duration
	logger *zap.Logger

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryLocker creates an in-memory session locker.
func NewMemoryLocker(ttl time.Duration, logger *zap.Logger) *MemoryLocker {
	return &MemoryLocker{
		locks:  make(map[string]memoryLockEntry),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Acquire takes the lock for sessionID when it is free or its holder expired.
func (l *MemoryLocker) Acquire(ctx context.Context, sessionID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.locks[sessionID]; ok && entry.expiresAt.After(now) {
		return "", ErrLockBusy
	}

	token := uuid.NewString()
	l.locks[sessionID] = memoryLockEntry{
		token:      token,
		acquiredAt: now,
		expiresAt:  now.Add(l.ttl),
	}

	return token, nil
}

// Release gives up the lock when token matches the current holder.
func (l *MemoryLocker) Release(ctx context.Context, sessionID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[sessionID]
	if !ok || entry.token != token {
		return ErrLockNotHeld
	}

	delete(l.locks, sessionID)

	return nil
}

// IsLocked reports whether a non-expired holder exists for sessionID.
func (l *MemoryLocker) IsLocked(ctx context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[sessionID]
	return ok && entry.expiresAt.After(l.now()), nil
}

// ForceRelease removes the lock regardless of holder.
func (l *MemoryLocker) ForceRelease(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, sessionID)

	if l.logger != nil {
		l.logger.Warn("session lock force-released", zap.String("session_id", sessionID))
	}

	return nil
}
