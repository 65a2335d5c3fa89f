// Package session defines the game session model: the mutable state snapshot
// a player's commands run against, plus its undo/redo history and bounded
// event log.
package session

import (
	"sync"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
)

// Phase is the session's current mode of play. Commands declare which phases
// they are compatible with.
type Phase string

const (
	PhaseExploration Phase = "EXPLORATION"
	PhaseCombat      Phase = "COMBAT"
	PhaseDialogue    Phase = "DIALOGUE"
	PhaseResting     Phase = "RESTING"
)

// GameState is the mutable snapshot commands execute against. Commands mutate
// a working copy; the engine merges it back only on commit.
type GameState struct {
	Phase         Phase                `json:"phase"`
	Character     *character.Character `json:"character"`
	Combat        *combat.Session      `json:"combat,omitempty"`
	LastNarration string               `json:"lastNarration,omitempty"`
	SceneImageURL string               `json:"sceneImageUrl,omitempty"`
}

// Copy creates a deep copy of the game state.
func (gs *GameState) Copy() *GameState {
	cp := *gs
	if gs.Character != nil {
		cp.Character = gs.Character.Copy()
	}
	if gs.Combat != nil {
		cp.Combat = gs.Combat.Copy()
	}
	return &cp
}

// Event is one entry in the session's bounded event history.
type Event struct {
	At      time.Time `json:"at"`
	Command string    `json:"command"`
	Message string    `json:"message"`
}

// Session is a single player's ongoing game. It is owned exclusively by the
// engine; all mutation flows through the command pipeline under the session
// lock.
type Session struct {
	ID          string
	UserID      string
	CharacterID string
	State       *GameState

	Undo   *History
	Redo   *History
	Events *EventRing

	// Cooldowns records the last invocation time per command type.
	Cooldowns map[string]time.Time

	CreatedAt time.Time

	// mu guards the bookkeeping fields below. Commands write them under the
	// session lock while the engine's background loops read them without it.
	mu          sync.Mutex
	updatedAt   time.Time
	lastSavedAt time.Time
	dirty       bool
}

// New creates a session for the given user and character with exploration
// state and empty histories.
func New(id, userID string, ch *character.Character, maxUndo, maxEvents int) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		UserID:      userID,
		CharacterID: ch.ID,
		State: &GameState{
			Phase:     PhaseExploration,
			Character: ch,
		},
		Undo:      NewHistory(maxUndo),
		Redo:      NewHistory(maxUndo),
		Events:    NewEventRing(maxEvents),
		Cooldowns: make(map[string]time.Time),
		CreatedAt: now,
		updatedAt: now,
	}
}

// NewFromSnapshot rebuilds a session around a state snapshot loaded from the
// store. Histories start empty; only the snapshot survives a restart.
func NewFromSnapshot(id, userID, characterID string, state *GameState, savedAt time.Time, maxUndo, maxEvents int) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		CharacterID: characterID,
		State:       state,
		Undo:        NewHistory(maxUndo),
		Redo:        NewHistory(maxUndo),
		Events:      NewEventRing(maxEvents),
		Cooldowns:   make(map[string]time.Time),
		CreatedAt:   savedAt,
		updatedAt:   savedAt,
		lastSavedAt: savedAt,
	}
}

// Touch marks the session mutated.
func (s *Session) Touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.dirty = true
	s.mu.Unlock()
}

// MarkSaved records that the current state was persisted at the given time.
func (s *Session) MarkSaved(at time.Time) {
	s.mu.Lock()
	s.lastSavedAt = at
	s.dirty = false
	s.mu.Unlock()
}

// RestoreSnapshot replaces the session state with a snapshot another engine
// instance committed to the store. Undo and redo entries refer to state that
// snapshot superseded, so both histories are cleared.
func (s *Session) RestoreSnapshot(state *GameState, at time.Time) {
	s.State = state
	s.Undo.Clear()
	s.Redo.Clear()

	s.mu.Lock()
	s.updatedAt = at
	s.lastSavedAt = at
	s.dirty = false
	s.mu.Unlock()
}

// Dirty reports whether the session has unpersisted changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// LastSavedAt returns the time of the last successful persist.
func (s *Session) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// RecordEvent appends an event to the bounded history.
func (s *Session) RecordEvent(command, message string) {
	s.Events.Append(Event{At: time.Now(), Command: command, Message: message})
}
