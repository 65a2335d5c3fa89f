package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
	"github.com/tiagofur/rpg-ai-sub004/internal/command"
	"github.com/tiagofur/rpg-ai-sub004/internal/config"
	"github.com/tiagofur/rpg-ai-sub004/internal/lock"
	"github.com/tiagofur/rpg-ai-sub004/internal/repository"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.EngineConfig{
		MaxUndoEntries:  5,
		MaxEventHistory: 20,
		InitiativeSeed:  42,
	}

	locker := lock.NewMemoryLocker(30*time.Second, zap.NewNop())
	combatMgr := combat.NewManager(cfg.InitiativeSeed, combat.LowestHealthStrategy{}, zap.NewNop())

	return New(cfg, locker, command.DefaultRegistry(), combatMgr, nil, nil, zap.NewNop())
}

func mustCreateSession(t *testing.T, e *Engine) *session.Session {
	t.Helper()

	sess, err := e.CreateSession(context.Background(), "user-1", "Hero")
	require.NoError(t, err)

	return sess
}

func TestExecuteCommand_Move(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	res, err := e.ExecuteCommand(context.Background(), sess.ID, "move",
		map[string]string{"destination": "dark-forest"}, "user-1")
	require.NoError(t, err)
	require.Contains(t, res.Message, "dark-forest")

	require.Equal(t, "dark-forest", sess.State.Character.Location)
	require.Equal(t, 48, sess.State.Character.Resources.Stamina, "move costs 2 stamina")
	require.Equal(t, 1, sess.Undo.Len())
	require.Equal(t, 1, sess.Events.Len())
}

func TestExecuteCommand_UnknownType(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "teleport", nil, "user-1")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestExecuteCommand_MissingParam(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "move", nil, "user-1")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Reasons[0], "destination")
}

func TestExecuteCommand_WrongUser(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "rest", nil, "someone-else")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestExecuteCommand_SessionNotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ExecuteCommand(context.Background(), "no-such-session", "rest", nil, "user-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExecuteCommand_InsufficientResources(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	// Drain mana below the heal cost of 10.
	sess.State.Character.Resources.Mana = 5
	healthBefore := sess.State.Character.Resources.Health

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "cast-heal", nil, "user-1")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Reasons[0], "insufficient MANA")

	// No mutation occurred.
	require.Equal(t, 5, sess.State.Character.Resources.Mana)
	require.Equal(t, healthBefore, sess.State.Character.Resources.Health)
	require.Equal(t, 0, sess.Undo.Len())
}

func TestExecuteCommand_Cooldown(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "rest", nil, "user-1")
	require.NoError(t, err)

	_, err = e.ExecuteCommand(context.Background(), sess.ID, "rest", nil, "user-1")

	var ce *command.CooldownError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "rest", ce.CommandType)
	require.Greater(t, ce.Remaining, time.Duration(0))
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	startLocation := sess.State.Character.Location
	startStamina := sess.State.Character.Resources.Stamina

	_, err := e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "dark-forest"}, "user-1")
	require.NoError(t, err)

	movedStamina := sess.State.Character.Resources.Stamina

	_, err = e.Undo(ctx, sess.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, startLocation, sess.State.Character.Location)
	require.Equal(t, startStamina, sess.State.Character.Resources.Stamina)

	_, err = e.Redo(ctx, sess.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, "dark-forest", sess.State.Character.Location)
	require.Equal(t, movedStamina, sess.State.Character.Resources.Stamina)
}

func TestUndo_EmptyStack(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.Undo(context.Background(), sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToUndo)

	_, err = e.Redo(context.Background(), sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToRedo)
}

func TestUndo_StackBounded(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	destinations := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, dest := range destinations {
		_, err := e.ExecuteCommand(ctx, sess.ID, "move",
			map[string]string{"destination": dest}, "user-1")
		require.NoError(t, err)
	}

	require.Equal(t, 5, sess.Undo.Len(), "undo stack must not exceed its cap")

	// Only the five most recent moves are reversible.
	for i := 0; i < 5; i++ {
		_, err := e.Undo(ctx, sess.ID, "user-1")
		require.NoError(t, err)
	}
	require.Equal(t, "b", sess.State.Character.Location,
		"oldest entries were evicted first")

	_, err := e.Undo(ctx, sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToUndo)
}

func TestRedo_ClearedByNewCommand(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	_, err := e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "a"}, "user-1")
	require.NoError(t, err)

	_, err = e.Undo(ctx, sess.ID, "user-1")
	require.NoError(t, err)

	_, err = e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "b"}, "user-1")
	require.NoError(t, err)

	_, err = e.Redo(ctx, sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToRedo)
}

func TestStartCombat_NonUndoable(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	_, err := e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "dark-forest"}, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Undo.Len())

	_, err = e.ExecuteCommand(ctx, sess.ID, "start-combat",
		map[string]string{"enemies": "goblin"}, "user-1")
	require.NoError(t, err)

	require.Equal(t, session.PhaseCombat, sess.State.Phase)
	require.NotNil(t, sess.State.Combat)

	// Starting combat is irreversible and invalidates older history.
	_, err = e.Undo(ctx, sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToUndo)
}

func TestCombat_FullEncounter(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	_, err := e.ExecuteCommand(ctx, sess.ID, "start-combat",
		map[string]string{"enemies": "goblin"}, "user-1")
	require.NoError(t, err)

	for i := 0; i < 10 && sess.State.Combat != nil; i++ {
		_, err := e.ExecuteCommand(ctx, sess.ID, "attack", nil, "user-1")
		require.NoError(t, err)
	}

	require.Nil(t, sess.State.Combat, "combat should resolve within a few attacks")
	require.Equal(t, session.PhaseExploration, sess.State.Phase)
	require.Greater(t, sess.State.Character.Experience, 0, "victory awards experience")
}

func TestExecuteCommand_PhaseIncompatible(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	_, err := e.ExecuteCommand(ctx, sess.ID, "start-combat",
		map[string]string{"enemies": "goblin"}, "user-1")
	require.NoError(t, err)

	// Cannot start combat while already in combat.
	_, err = e.ExecuteCommand(ctx, sess.ID, "start-combat",
		map[string]string{"enemies": "wolf"}, "user-1")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
}

// blockingCommand parks inside effect execution so tests can hold the session
// lock at a known point.
type blockingCommand struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCommand) Type() string                    { return "block" }
func (b *blockingCommand) Description() string             { return "test command that blocks" }
func (b *blockingCommand) Cooldown() time.Duration         { return 0 }
func (b *blockingCommand) MinLevel() int                   { return 1 }
func (b *blockingCommand) RequiredParams() []string        { return nil }
func (b *blockingCommand) AllowedPhases() []session.Phase  { return []session.Phase{session.PhaseExploration} }
func (b *blockingCommand) Undoable() bool                  { return true }
func (b *blockingCommand) Validate(*command.Context) []string { return nil }
func (b *blockingCommand) Cost(*command.Context) command.Cost { return nil }

func (b *blockingCommand) Execute(ctx context.Context, c *command.Context) (*command.Result, error) {
	close(b.started)
	<-b.release
	return &command.Result{Message: "done"}, nil
}

func TestExecuteCommand_MutualExclusion(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	blocker := &blockingCommand{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	require.NoError(t, e.registry.Register(blocker))

	firstDone := make(chan error, 1)
	go func() {
		_, err := e.ExecuteCommand(ctx, sess.ID, "block", nil, "user-1")
		firstDone <- err
	}()

	<-blocker.started

	// The session is mid-execution: a second command must be rejected fast.
	_, err := e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "a"}, "user-1")
	require.ErrorIs(t, err, lock.ErrLockBusy)

	locked, lockErr := e.IsSessionLocked(ctx, sess.ID)
	require.NoError(t, lockErr)
	require.True(t, locked)

	close(blocker.release)
	require.NoError(t, <-firstDone)

	// After commit and release the session accepts commands again.
	_, err = e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "a"}, "user-1")
	require.NoError(t, err)
}

func TestForceReleaseSessionLock(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	// Simulate a stuck holder.
	_, err := e.locker.Acquire(ctx, sess.ID)
	require.NoError(t, err)

	locked, _ := e.IsSessionLocked(ctx, sess.ID)
	require.True(t, locked)

	require.NoError(t, e.ForceReleaseSessionLock(ctx, sess.ID))

	locked, _ = e.IsSessionLocked(ctx, sess.ID)
	require.False(t, locked, "force release takes effect immediately")

	_, err = e.ExecuteCommand(ctx, sess.ID, "rest", nil, "user-1")
	require.NoError(t, err, "session is usable without waiting for TTL expiry")
}

func TestMetrics(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)
	ctx := context.Background()

	_, _ = e.ExecuteCommand(ctx, sess.ID, "move",
		map[string]string{"destination": "a"}, "user-1")
	_, _ = e.ExecuteCommand(ctx, sess.ID, "teleport", nil, "user-1")

	snap := e.Metrics()
	require.Equal(t, int64(1), snap.CommandsExecuted)
	require.Equal(t, int64(1), snap.CommandsFailed)
	require.Equal(t, 1, snap.ActiveSessions)
	require.InDelta(t, 0.5, snap.ErrorRate, 0.001)
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, command.CodeValidation, ErrorCode(command.NewValidationError("bad")))
	require.Equal(t, command.CodeLockBusy, ErrorCode(lock.ErrLockBusy))
	require.Equal(t, command.CodeNothingToUndo, ErrorCode(command.ErrNothingToUndo))
	require.Equal(t, command.CodeExecution,
		ErrorCode(&command.ExecutionError{CommandType: "narrate", Cause: errors.New("timeout")}))
	require.Equal(t, command.CodeInternal, ErrorCode(errors.New("surprise")))

	require.True(t, Retryable(lock.ErrLockBusy))
	require.False(t, Retryable(command.NewValidationError("bad")))
}

func TestShutdown_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	e.Start()

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
}

// fakeStore is an in-memory SessionStore shared between engine instances in
// multi-instance tests.
type fakeStore struct {
	mu   sync.Mutex
	recs map[string]repository.SessionRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]repository.SessionRecord)}
}

func (s *fakeStore) Get(ctx context.Context, id string) (*repository.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *fakeStore) Upsert(ctx context.Context, rec *repository.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs[rec.ID] = *rec
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recs, id)
	return nil
}

func TestExecuteCommand_RefreshesStaleCacheAcrossInstances(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.EngineConfig{
		MaxUndoEntries:  5,
		MaxEventHistory: 20,
		InitiativeSeed:  42,
	}
	locker := lock.NewMemoryLocker(30*time.Second, logger)
	store := newFakeStore()

	newInstance := func() *Engine {
		return New(cfg, locker, command.DefaultRegistry(),
			combat.NewManager(cfg.InitiativeSeed, combat.LowestHealthStrategy{}, logger),
			nil, store, logger)
	}

	a := newInstance()
	b := newInstance()

	sess, err := a.CreateSession(context.Background(), "user-1", "Hero")
	require.NoError(t, err)

	// Instance B picks the session up from the shared store and commits a move.
	_, err = b.ExecuteCommand(context.Background(), sess.ID, "move",
		map[string]string{"destination": "dark-forest"}, "user-1")
	require.NoError(t, err)

	// Instance A still holds a cached copy from before B's commit. Its command
	// must build on B's committed state instead of overwriting it.
	_, err = a.ExecuteCommand(context.Background(), sess.ID, "move",
		map[string]string{"destination": "old-mill"}, "user-1")
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)

	var state session.GameState
	require.NoError(t, json.Unmarshal(rec.State, &state))
	require.Equal(t, "old-mill", state.Character.Location)
	require.Equal(t, 46, state.Character.Resources.Stamina,
		"persisted state must carry both instances' stamina debits")
}

func TestUndo_RefreshedStateHasNoHistory(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.EngineConfig{
		MaxUndoEntries:  5,
		MaxEventHistory: 20,
		InitiativeSeed:  42,
	}
	locker := lock.NewMemoryLocker(30*time.Second, logger)
	store := newFakeStore()

	newInstance := func() *Engine {
		return New(cfg, locker, command.DefaultRegistry(),
			combat.NewManager(cfg.InitiativeSeed, combat.LowestHealthStrategy{}, logger),
			nil, store, logger)
	}

	a := newInstance()
	b := newInstance()

	sess, err := a.CreateSession(context.Background(), "user-1", "Hero")
	require.NoError(t, err)

	_, err = a.ExecuteCommand(context.Background(), sess.ID, "move",
		map[string]string{"destination": "dark-forest"}, "user-1")
	require.NoError(t, err)

	_, err = b.ExecuteCommand(context.Background(), sess.ID, "move",
		map[string]string{"destination": "old-mill"}, "user-1")
	require.NoError(t, err)

	// A's undo entry predates B's commit; undoing it would revert B's state,
	// so the refresh discards it.
	_, err = a.Undo(context.Background(), sess.ID, "user-1")
	require.ErrorIs(t, err, command.ErrNothingToUndo)
}

func TestExecuteCommand_UnknownEnemyKindIsValidation(t *testing.T) {
	e := newTestEngine(t)
	sess := mustCreateSession(t, e)

	_, err := e.ExecuteCommand(context.Background(), sess.ID, "start-combat",
		map[string]string{"enemies": "dragon"}, "user-1")

	var ve *command.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Reasons[0], "unknown enemy kind")

	require.Nil(t, sess.State.Combat)
	require.Equal(t, session.PhaseExploration, sess.State.Phase)
}
