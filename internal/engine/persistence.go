package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/repository"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
)

// persist writes the session's current state snapshot to the store. Undo and
// event history are runtime-only and intentionally not persisted.
func (e *Engine) persist(ctx context.Context, sess *session.Session) error {
	if e.store == nil {
		return nil
	}

	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("failed to serialize session state: %w", err)
	}

	now := time.Now()
	rec := &repository.SessionRecord{
		ID:          sess.ID,
		UserID:      sess.UserID,
		CharacterID: sess.CharacterID,
		Phase:       string(sess.State.Phase),
		State:       state,
		UpdatedAt:   now,
	}

	if err := e.store.Upsert(ctx, rec); err != nil {
		return err
	}

	sess.MarkSaved(now)

	return nil
}

// refreshSession brings the cached session up to date with the store. Another
// engine instance sharing the store may have committed newer state since this
// instance last saw the session; trusting the cache would overwrite those
// effects on the next persist. Must be called while holding the session lock.
func (e *Engine) refreshSession(ctx context.Context, sess *session.Session) error {
	if e.store == nil {
		return nil
	}

	rec, err := e.store.Get(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to refresh session %s: %w", sess.ID, err)
	}

	if !rec.UpdatedAt.After(sess.LastSavedAt()) {
		return nil
	}

	var state session.GameState
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return fmt.Errorf("failed to deserialize session %s: %w", sess.ID, err)
	}

	sess.RestoreSnapshot(&state, rec.UpdatedAt)

	e.logger.Info("session refreshed from store",
		zap.String("session_id", sess.ID),
		zap.Time("stored_at", rec.UpdatedAt),
	)

	return nil
}

// loadSession restores a session from the store into memory. Histories start
// empty; only the state snapshot survives a restart.
func (e *Engine) loadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if e.store == nil {
		return nil, ErrSessionNotFound
	}

	rec, err := e.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state session.GameState
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize session %s: %w", sessionID, err)
	}

	sess := session.NewFromSnapshot(
		rec.ID, rec.UserID, rec.CharacterID,
		&state, rec.UpdatedAt,
		e.cfg.MaxUndoEntries, e.cfg.MaxEventHistory,
	)

	e.mu.Lock()
	// Another request may have loaded it concurrently; keep the first copy so
	// all callers share one instance.
	if existing, ok := e.sessions[sessionID]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	e.sessions[sessionID] = sess
	e.mu.Unlock()

	e.logger.Info("session restored from store", zap.String("session_id", sessionID))

	return sess, nil
}
