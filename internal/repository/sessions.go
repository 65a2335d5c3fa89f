package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the persisted form of a game session. State carries the
// engine's serialized snapshot as JSON; the repository never inspects it.
type SessionRecord struct {
	ID          string
	UserID      string
	CharacterID string
	Phase       string
	State       []byte
	UpdatedAt   time.Time
}

// SessionRepository persists game sessions.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a session repository backed by the given DB.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get loads a session record by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*SessionRecord, error) {
	const query = `
		SELECT id, user_id, character_id, phase, state, updated_at
		FROM game_sessions
		WHERE id = $1`

	var rec SessionRecord
	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &rec.CharacterID, &rec.Phase, &rec.State, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	return &rec, nil
}

// Upsert inserts or replaces a session record.
func (r *SessionRepository) Upsert(ctx context.Context, rec *SessionRecord) error {
	const query = `
		INSERT INTO game_sessions (id, user_id, character_id, phase, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    character_id = EXCLUDED.character_id,
		    phase = EXCLUDED.phase,
		    state = EXCLUDED.state,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.CharacterID, rec.Phase, rec.State, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", rec.ID, err)
	}

	return nil
}

// Delete removes a session record. Deleting a missing record is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM game_sessions WHERE id = $1`

	if _, err := r.db.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	return nil
}
