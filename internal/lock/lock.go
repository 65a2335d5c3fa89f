// Package lock provides distributed mutual exclusion keyed by session id.
//
// Multiple engine instances may share one backing store; the lock guarantees
// that at most one valid, non-expired holder exists per session at any instant.
// Every lock carries a TTL so a crashed holder self-heals without manual
// intervention.
package lock

import (
	"context"
	"errors"
)

// ErrLockBusy is returned when the lock is held by another, non-expired holder.
// Callers should retry with backoff rather than queue.
var ErrLockBusy = errors.New("session lock is held by another holder")

// ErrLockNotHeld is returned when releasing with a token that does not match
// the current holder.
var ErrLockNotHeld = errors.New("session lock not held with given token")

// SessionLocker is the mutual-exclusion primitive guarding session state.
//
// Acquire returns an opaque token proving ownership. Release succeeds only
// with the matching token. ForceRelease is administrative and bypasses the
// token check.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID string) (token string, err error)
	Release(ctx context.Context, sessionID, token string) error
	IsLocked(ctx context.Context, sessionID string) (bool, error)
	ForceRelease(ctx context.Context, sessionID string) error
}
