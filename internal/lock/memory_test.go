package lock

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLocker(ttl time.Duration) *MemoryLocker {
	return NewMemoryLocker(ttl, zap.NewNop())
}

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	l := newTestLocker(30 * time.Second)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("expected acquire to succeed, got %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	locked, err := l.IsLocked(ctx, "s1")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Error("expected session to be locked after acquire")
	}

	if err := l.Release(ctx, "s1", token); err != nil {
		t.Fatalf("expected release to succeed, got %v", err)
	}

	locked, _ = l.IsLocked(ctx, "s1")
	if locked {
		t.Error("expected session to be unlocked after release")
	}
}

func TestMemoryLocker_SecondAcquireBusy(t *testing.T) {
	l := newTestLocker(30 * time.Second)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := l.Acquire(ctx, "s1"); err != ErrLockBusy {
		t.Fatalf("expected ErrLockBusy on second acquire, got %v", err)
	}

	// A different session is unaffected.
	if _, err := l.Acquire(ctx, "s2"); err != nil {
		t.Fatalf("acquire of different session failed: %v", err)
	}
}

func TestMemoryLocker_ReleaseWrongToken(t *testing.T) {
	l := newTestLocker(30 * time.Second)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := l.Release(ctx, "s1", "bogus-token"); err != ErrLockNotHeld {
		t.Fatalf("expected ErrLockNotHeld, got %v", err)
	}

	if err := l.Release(ctx, "never-locked", "token"); err != ErrLockNotHeld {
		t.Fatalf("expected ErrLockNotHeld for unheld session, got %v", err)
	}
}

func TestMemoryLocker_ExpiredLockReacquirable(t *testing.T) {
	l := newTestLocker(10 * time.Second)
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Advance past the TTL; the crashed holder self-heals.
	l.now = func() time.Time { return base.Add(11 * time.Second) }

	locked, _ := l.IsLocked(ctx, "s1")
	if locked {
		t.Error("expected expired lock to report unlocked")
	}

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("expected acquire after expiry to succeed, got %v", err)
	}
}

func TestMemoryLocker_ForceRelease(t *testing.T) {
	l := newTestLocker(30 * time.Second)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := l.ForceRelease(ctx, "s1"); err != nil {
		t.Fatalf("force release failed: %v", err)
	}

	locked, _ := l.IsLocked(ctx, "s1")
	if locked {
		t.Error("expected session unlocked immediately after force release")
	}

	if _, err := l.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("expected acquire after force release to succeed, got %v", err)
	}
}

func TestMemoryLocker_ConcurrentAcquireSingleWinner(t *testing.T) {
	l := newTestLocker(30 * time.Second)
	ctx := context.Background()

	const attempts = 16
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := l.Acquire(ctx, "s1")
			results <- err
		}()
	}

	wins := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			wins++
		} else if err != ErrLockBusy {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
