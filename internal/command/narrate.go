package command

import (
	"context"
	"fmt"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
)

const imageGoldCost = 5

// NarrateCommand asks the AI narrative service to describe the current scene.
// The remote call is fallible; failures surface as a command execution error
// and leave session state untouched.
type NarrateCommand struct{}

func (NarrateCommand) Type() string        { return "narrate" }
func (NarrateCommand) Description() string { return "Generate a narrative passage for the scene" }

func (NarrateCommand) Cooldown() time.Duration { return 5 * time.Second }
func (NarrateCommand) MinLevel() int           { return 1 }

func (NarrateCommand) RequiredParams() []string { return []string{"prompt"} }

func (NarrateCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration, session.PhaseDialogue}
}

func (NarrateCommand) Undoable() bool { return true }

func (NarrateCommand) Validate(c *Context) []string { return nil }

func (NarrateCommand) Cost(c *Context) Cost { return nil }

func (NarrateCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	text, err := c.Narrative.Narrate(ctx, c.Param("prompt"), c.Actor.Location, string(c.State.Phase))
	if err != nil {
		return nil, err
	}

	c.State.LastNarration = text

	return &Result{
		Message:    text,
		LogEntries: []string{fmt.Sprintf("narration generated at %s", c.Actor.Location)},
	}, nil
}

// GenerateImageCommand asks the AI image service to render the current scene.
type GenerateImageCommand struct{}

func (GenerateImageCommand) Type() string        { return "generate-image" }
func (GenerateImageCommand) Description() string { return "Generate an image of the scene" }

func (GenerateImageCommand) Cooldown() time.Duration { return 30 * time.Second }
func (GenerateImageCommand) MinLevel() int           { return 1 }

func (GenerateImageCommand) RequiredParams() []string { return []string{"prompt"} }

func (GenerateImageCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration, session.PhaseDialogue}
}

func (GenerateImageCommand) Undoable() bool { return true }

func (GenerateImageCommand) Validate(c *Context) []string { return nil }

func (GenerateImageCommand) Cost(c *Context) Cost {
	return Cost{character.ResourceGold: imageGoldCost}
}

func (GenerateImageCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	url, err := c.Narrative.GenerateImage(ctx, c.Param("prompt"), c.Param("style"))
	if err != nil {
		return nil, err
	}

	c.State.SceneImageURL = url

	return &Result{
		Message:       "An image of the scene takes shape.",
		LogEntries:    []string{fmt.Sprintf("scene image generated: %s", url)},
		Notifications: []string{"New scene image available"},
	}, nil
}
