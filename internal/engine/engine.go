// Package engine orchestrates the session command lifecycle: session
// ownership, command dispatch through the session lock, undo/redo, combat
// delegation, metrics and auto-persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
	"github.com/tiagofur/rpg-ai-sub004/internal/command"
	"github.com/tiagofur/rpg-ai-sub004/internal/config"
	"github.com/tiagofur/rpg-ai-sub004/internal/lock"
	"github.com/tiagofur/rpg-ai-sub004/internal/narrative"
	"github.com/tiagofur/rpg-ai-sub004/internal/repository"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when the session id is unknown to the
// engine and the store.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the slice of the persistence layer the engine depends on.
// A nil store disables durability (test deployments).
type SessionStore interface {
	Get(ctx context.Context, id string) (*repository.SessionRecord, error)
	Upsert(ctx context.Context, rec *repository.SessionRecord) error
	Delete(ctx context.Context, id string) error
}

// Engine is the root component. It owns all in-memory sessions and guarantees
// that commands for one session never interleave, using the session lock as
// the only cross-instance coordination point.
type Engine struct {
	cfg       config.EngineConfig
	locker    lock.SessionLocker
	registry  *command.Registry
	combatMgr *combat.Manager
	narrative *narrative.Client
	store     SessionStore
	logger    *zap.Logger
	metrics   *Metrics

	mu       sync.RWMutex
	sessions map[string]*session.Session

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an engine. store may be nil to run without durability.
func New(
	cfg config.EngineConfig,
	locker lock.SessionLocker,
	registry *command.Registry,
	combatMgr *combat.Manager,
	narrativeClient *narrative.Client,
	store SessionStore,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		locker:    locker,
		registry:  registry,
		combatMgr: combatMgr,
		narrative: narrativeClient,
		store:     store,
		logger:    logger,
		metrics:   &Metrics{},
		sessions:  make(map[string]*session.Session),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the auto-persistence loop.
func (e *Engine) Start() {
	if e.store == nil || e.cfg.AutosaveInterval <= 0 {
		return
	}

	e.wg.Add(1)
	go e.autosaveLoop()
}

// CreateSession creates a new session with a fresh character for the user.
func (e *Engine) CreateSession(ctx context.Context, userID, characterName string) (*session.Session, error) {
	if userID == "" {
		return nil, command.NewValidationError("user id is required")
	}
	if characterName == "" {
		return nil, command.NewValidationError("character name is required")
	}

	ch := character.New(uuid.NewString(), userID, characterName)
	sess := session.New(uuid.NewString(), userID, ch, e.cfg.MaxUndoEntries, e.cfg.MaxEventHistory)

	e.mu.Lock()
	e.sessions[sess.ID] = sess
	e.mu.Unlock()

	if err := e.persist(ctx, sess); err != nil {
		e.logger.Warn("failed to persist new session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}

	e.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("character", characterName),
	)

	return sess, nil
}

// GetSession returns the session by id, loading it from the store when it is
// not resident.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	e.mu.RLock()
	sess, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if ok {
		return sess, nil
	}

	return e.loadSession(ctx, sessionID)
}

// ExecuteCommand runs one command against a session through the full
// pipeline: lock, validate, cost, cooldown, execute, commit. The lock is
// released on every path; failure before commit leaves session state
// untouched.
func (e *Engine) ExecuteCommand(ctx context.Context, sessionID, commandType string, params map[string]string, userID string) (*command.Result, error) {
	started := time.Now()

	cmd, ok := e.registry.Get(commandType)
	if !ok {
		e.metrics.recordFailure()
		return nil, command.NewValidationError(fmt.Sprintf("unknown command type %q", commandType))
	}

	token, err := e.locker.Acquire(ctx, sessionID)
	if err != nil {
		e.metrics.recordFailure()
		return nil, err
	}
	defer e.releaseLock(sessionID, token)

	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		e.metrics.recordFailure()
		return nil, err
	}
	if err := e.refreshSession(ctx, sess); err != nil {
		e.metrics.recordFailure()
		return nil, err
	}

	res, err := e.runPipeline(ctx, sess, cmd, params, userID)
	if err != nil {
		e.metrics.recordFailure()
		return nil, err
	}

	e.metrics.recordSuccess(time.Since(started))

	return res, nil
}

// runPipeline performs steps 1-5 of the command lifecycle. The caller holds
// the session lock.
func (e *Engine) runPipeline(ctx context.Context, sess *session.Session, cmd command.Command, params map[string]string, userID string) (*command.Result, error) {
	if sess.UserID != userID {
		return nil, command.NewValidationError("session does not belong to this user")
	}

	// Step 1: structural validation. Nothing has mutated yet.
	working := sess.State.Copy()
	cctx := &command.Context{
		SessionID: sess.ID,
		UserID:    userID,
		State:     working,
		Actor:     working.Character,
		Params:    params,
		Combat:    e.combatMgr,
		Narrative: e.narrative,
		Logger:    e.logger,
	}

	var reasons []string
	for _, p := range cmd.RequiredParams() {
		if cctx.Param(p) == "" {
			reasons = append(reasons, fmt.Sprintf("missing required parameter %q", p))
		}
	}
	if !command.PhaseAllowed(cmd.AllowedPhases(), working.Phase) {
		reasons = append(reasons, fmt.Sprintf("command %s is not available during %s", cmd.Type(), working.Phase))
	}
	if !working.Character.IsAlive() {
		reasons = append(reasons, "character is not able to act")
	}
	if working.Character.Level < cmd.MinLevel() {
		reasons = append(reasons, fmt.Sprintf("requires level %d", cmd.MinLevel()))
	}
	if len(reasons) == 0 {
		reasons = cmd.Validate(cctx)
	}
	if len(reasons) > 0 {
		return nil, &command.ValidationError{Reasons: reasons}
	}

	// Step 2: cost calculation and affordability.
	cost := cmd.Cost(cctx)
	for resource, amount := range cost {
		if !working.Character.Resources.CanAfford(resource, amount) {
			reasons = append(reasons, fmt.Sprintf("insufficient %s: need %d, have %d",
				resource, amount, working.Character.Resources.Get(resource)))
		}
	}
	if len(reasons) > 0 {
		return nil, &command.ValidationError{Reasons: reasons}
	}

	// Step 3: cooldown.
	if cd := cmd.Cooldown(); cd > 0 {
		if last, ok := sess.Cooldowns[cmd.Type()]; ok {
			if elapsed := time.Since(last); elapsed < cd {
				return nil, &command.CooldownError{CommandType: cmd.Type(), Remaining: cd - elapsed}
			}
		}
	}

	// Step 4: effect execution against the working copy. The cost is debited
	// here; affordability was proven above.
	for resource, amount := range cost {
		working.Character.Resources.Spend(resource, amount)
	}

	res, err := cmd.Execute(ctx, cctx)
	if err != nil {
		var ve *command.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, &command.ExecutionError{CommandType: cmd.Type(), Cause: err}
	}

	// Step 5: commit. The working copy becomes live state; the previous state
	// is frozen into the undo entry.
	before := sess.State
	sess.State = working

	if cmd.Undoable() {
		sess.Undo.Push(session.UndoEntry{
			CommandType: cmd.Type(),
			Before:      before,
			After:       working.Copy(),
		})
		sess.Redo.Clear()
	} else {
		// A non-reversible command invalidates everything behind it: undoing
		// an older entry would also revert this command's effect.
		sess.Undo.Clear()
		sess.Redo.Clear()
	}

	sess.Cooldowns[cmd.Type()] = time.Now()
	sess.Touch()
	sess.RecordEvent(cmd.Type(), res.Message)

	if err := e.persist(ctx, sess); err != nil {
		e.logger.Warn("failed to persist session after command",
			zap.String("session_id", sess.ID),
			zap.String("command", cmd.Type()),
			zap.Error(err),
		)
	}

	e.logger.Info("command executed",
		zap.String("session_id", sess.ID),
		zap.String("command", cmd.Type()),
		zap.String("phase", string(sess.State.Phase)),
	)

	return res, nil
}

// Undo reverses the most recent undoable command. It takes the session lock
// exactly like an ordinary command.
func (e *Engine) Undo(ctx context.Context, sessionID, userID string) (*command.Result, error) {
	token, err := e.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(sessionID, token)

	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, command.NewValidationError("session does not belong to this user")
	}
	if err := e.refreshSession(ctx, sess); err != nil {
		return nil, err
	}

	top, ok := sess.Undo.Peek()
	if !ok {
		return nil, command.ErrNothingToUndo
	}

	// Non-undoable entries are never pushed; this guards against regressions.
	if cmd, found := e.registry.Get(top.CommandType); found && !cmd.Undoable() {
		return nil, command.ErrNothingToUndo
	}

	entry, _ := sess.Undo.Pop()
	sess.State = entry.Before.Copy()
	sess.Redo.Push(entry)
	sess.Touch()
	sess.RecordEvent("undo", fmt.Sprintf("undid %s", entry.CommandType))
	e.metrics.undoCount.Add(1)

	if err := e.persist(ctx, sess); err != nil {
		e.logger.Warn("failed to persist session after undo",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}

	return &command.Result{
		Message:    fmt.Sprintf("Undid %s.", entry.CommandType),
		LogEntries: []string{fmt.Sprintf("undo: %s", entry.CommandType)},
	}, nil
}

// Redo reapplies the most recently undone command.
func (e *Engine) Redo(ctx context.Context, sessionID, userID string) (*command.Result, error) {
	token, err := e.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(sessionID, token)

	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, command.NewValidationError("session does not belong to this user")
	}
	if err := e.refreshSession(ctx, sess); err != nil {
		return nil, err
	}

	entry, ok := sess.Redo.Pop()
	if !ok {
		return nil, command.ErrNothingToRedo
	}

	sess.State = entry.After.Copy()
	sess.Undo.Push(entry)
	sess.Touch()
	sess.RecordEvent("redo", fmt.Sprintf("redid %s", entry.CommandType))
	e.metrics.redoCount.Add(1)

	if err := e.persist(ctx, sess); err != nil {
		e.logger.Warn("failed to persist session after redo",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}

	return &command.Result{
		Message:    fmt.Sprintf("Redid %s.", entry.CommandType),
		LogEntries: []string{fmt.Sprintf("redo: %s", entry.CommandType)},
	}, nil
}

// DeleteSession ends a session: it is dropped from memory and removed from
// the store. Taken under the session lock so it cannot race a command.
func (e *Engine) DeleteSession(ctx context.Context, sessionID, userID string) error {
	token, err := e.locker.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.releaseLock(sessionID, token)

	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return command.NewValidationError("session does not belong to this user")
	}

	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
		}
	}

	e.logger.Info("session deleted",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)

	return nil
}

// IsSessionLocked reports whether a command is currently holding the session.
func (e *Engine) IsSessionLocked(ctx context.Context, sessionID string) (bool, error) {
	return e.locker.IsLocked(ctx, sessionID)
}

// ForceReleaseSessionLock is the administrative recovery path: it releases
// the session lock regardless of holder.
func (e *Engine) ForceReleaseSessionLock(ctx context.Context, sessionID string) error {
	return e.locker.ForceRelease(ctx, sessionID)
}

// CommandTypes lists all registered command types.
func (e *Engine) CommandTypes() []string {
	return e.registry.Types()
}

// Metrics returns a point-in-time snapshot of engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	e.mu.RLock()
	active := len(e.sessions)
	e.mu.RUnlock()

	return e.metrics.snapshot(active)
}

// Shutdown stops the autosave loop and flushes every dirty session.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()

	e.mu.RLock()
	sessions := make([]*session.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	var firstErr error
	for _, s := range sessions {
		if !s.Dirty() {
			continue
		}
		if err := e.persist(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	e.logger.Info("engine shut down", zap.Int("sessions_flushed", len(sessions)))

	return firstErr
}

func (e *Engine) releaseLock(sessionID, token string) {
	// Release uses a fresh context so a cancelled request cannot leave a
	// session locked until TTL expiry.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.locker.Release(ctx, sessionID, token); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
		e.logger.Error("failed to release session lock",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (e *Engine) autosaveLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.autosave()
			e.evictIdle()
		}
	}
}

// evictIdle drops clean sessions that have been idle past the configured
// timeout from memory. They remain in the store and reload on next access.
func (e *Engine) evictIdle() {
	if e.cfg.IdleTimeout <= 0 {
		return
	}

	cutoff := time.Now().Add(-e.cfg.IdleTimeout)

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, s := range e.sessions {
		if !s.Dirty() && s.UpdatedAt().Before(cutoff) {
			delete(e.sessions, id)
			e.logger.Info("idle session evicted", zap.String("session_id", id))
		}
	}
}

// autosave persists dirty sessions. Each snapshot is taken under a brief
// lock acquisition to avoid torn reads; sessions whose lock is busy are
// skipped, since the running command persists on commit anyway.
func (e *Engine) autosave() {
	e.mu.RLock()
	dirty := make([]*session.Session, 0)
	for _, s := range e.sessions {
		if s.Dirty() {
			dirty = append(dirty, s)
		}
	}
	e.mu.RUnlock()

	for _, s := range dirty {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		token, err := e.locker.Acquire(ctx, s.ID)
		if err != nil {
			cancel()
			continue
		}

		err = e.persist(ctx, s)
		e.releaseLock(s.ID, token)
		cancel()

		if err != nil {
			e.logger.Warn("autosave failed",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
		}
	}
}
