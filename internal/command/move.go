package command

import (
	"context"
	"fmt"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
)

// moveStaminaCost is the flat stamina cost of traveling between locations.
const moveStaminaCost = 2

// MoveCommand moves the character to another location.
type MoveCommand struct{}

func (MoveCommand) Type() string        { return "move" }
func (MoveCommand) Description() string { return "Travel to another location" }

func (MoveCommand) Cooldown() time.Duration { return 0 }
func (MoveCommand) MinLevel() int           { return 1 }

func (MoveCommand) RequiredParams() []string { return []string{"destination"} }

func (MoveCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration}
}

func (MoveCommand) Undoable() bool { return true }

func (MoveCommand) Validate(c *Context) []string {
	if dest := c.Param("destination"); dest == c.Actor.Location {
		return []string{fmt.Sprintf("already at %s", dest)}
	}
	return nil
}

func (MoveCommand) Cost(c *Context) Cost {
	return Cost{character.ResourceStamina: moveStaminaCost}
}

func (MoveCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	from := c.Actor.Location
	dest := c.Param("destination")
	c.Actor.Location = dest

	return &Result{
		Message:    fmt.Sprintf("You travel from %s to %s.", from, dest),
		LogEntries: []string{fmt.Sprintf("%s moved from %s to %s", c.Actor.Name, from, dest)},
	}, nil
}
