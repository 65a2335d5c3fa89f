// Package command defines the polymorphic unit of work the engine executes:
// a validated, costed, reversible-or-not piece of player or system intent.
// New command types are added by implementing Command and registering the
// implementation; there is no inheritance chain.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
	"github.com/tiagofur/rpg-ai-sub004/internal/narrative"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
)

// Cost is the resource debit a command charges on execution.
type Cost map[character.ResourceType]int

// Context is the per-invocation execution context. State is a working copy of
// the session state: commands mutate it freely, and the engine merges it back
// only when execution succeeds.
type Context struct {
	SessionID string
	UserID    string
	State     *session.GameState
	Actor     *character.Character
	Params    map[string]string

	Combat    *combat.Manager
	Narrative *narrative.Client
	Logger    *zap.Logger
}

// Param returns a named parameter, or "" when absent.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Result is the outcome of a successfully executed command.
type Result struct {
	Message          string   `json:"message"`
	LogEntries       []string `json:"logEntries,omitempty"`
	Notifications    []string `json:"notifications,omitempty"`
	ExperienceGained int      `json:"experienceGained,omitempty"`
}

// Command is one discrete command type. Implementations are stateless
// definitions; each invocation receives a fresh Context.
type Command interface {
	// Type is the stable identifier callers dispatch on.
	Type() string
	// Description is a short human-readable summary.
	Description() string
	// Cooldown is the minimum interval between invocations of this type.
	// Zero means no cooldown.
	Cooldown() time.Duration
	// MinLevel is the minimum actor level required.
	MinLevel() int
	// RequiredParams lists parameter names that must be present.
	RequiredParams() []string
	// AllowedPhases lists session phases the command may run in.
	AllowedPhases() []session.Phase
	// Undoable reports whether the command's effect can be reversed.
	Undoable() bool
	// Validate returns command-specific failure reasons beyond the
	// structural checks the engine performs. Empty means valid.
	Validate(c *Context) []string
	// Cost computes the resource cost from context. Informational until
	// the engine debits it at execution time.
	Cost(c *Context) Cost
	// Execute applies the command's effect to the working state copy.
	Execute(ctx context.Context, c *Context) (*Result, error)
}

// Registry maps command types to their implementations.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command implementation. Registering a duplicate type is a
// programming error.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Type()]; exists {
		return fmt.Errorf("command type %q already registered", cmd.Type())
	}
	r.commands[cmd.Type()] = cmd

	return nil
}

// Get returns the command registered under commandType.
func (r *Registry) Get(commandType string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[commandType]
	return cmd, ok
}

// Types returns all registered command types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.commands))
	for t := range r.commands {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// DefaultRegistry builds a registry containing every built-in command.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cmd := range []Command{
		&MoveCommand{},
		&RestCommand{},
		&StartCombatCommand{},
		&AttackCommand{},
		&CastHealCommand{},
		&DefendCommand{},
		&FleeCommand{},
		&NarrateCommand{},
		&GenerateImageCommand{},
	} {
		// Built-ins have unique types; Register cannot fail here.
		_ = r.Register(cmd)
	}
	return r
}

// PhaseAllowed reports whether phase is in the allowed set.
func PhaseAllowed(allowed []session.Phase, phase session.Phase) bool {
	for _, p := range allowed {
		if p == phase {
			return true
		}
	}
	return false
}
