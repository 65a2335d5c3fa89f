package command

import (
	"context"
	"fmt"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/session"
)

// RestCommand restores the character's resources. It has a long cooldown so
// it cannot be spammed between fights.
type RestCommand struct{}

func (RestCommand) Type() string        { return "rest" }
func (RestCommand) Description() string { return "Rest and recover health, mana and stamina" }

func (RestCommand) Cooldown() time.Duration { return 60 * time.Second }
func (RestCommand) MinLevel() int           { return 1 }

func (RestCommand) RequiredParams() []string { return nil }

func (RestCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration, session.PhaseResting}
}

func (RestCommand) Undoable() bool { return true }

func (RestCommand) Validate(c *Context) []string { return nil }

func (RestCommand) Cost(c *Context) Cost { return nil }

func (RestCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	c.Actor.Resources.RestoreAll()
	c.State.Phase = session.PhaseExploration

	return &Result{
		Message:    "You rest and recover your strength.",
		LogEntries: []string{fmt.Sprintf("%s rested to full resources", c.Actor.Name)},
	}, nil
}
