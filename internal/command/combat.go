package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
)

const (
	attackStaminaCost = 5
	castHealManaCost  = 10
	xpPerEnemy        = 25
)

// StartCombatCommand begins a combat encounter against the named enemies.
// Starting combat cannot be undone.
type StartCombatCommand struct{}

func (StartCombatCommand) Type() string        { return "start-combat" }
func (StartCombatCommand) Description() string { return "Engage enemies in turn-based combat" }

func (StartCombatCommand) Cooldown() time.Duration { return 0 }
func (StartCombatCommand) MinLevel() int           { return 1 }

func (StartCombatCommand) RequiredParams() []string { return []string{"enemies"} }

func (StartCombatCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration}
}

func (StartCombatCommand) Undoable() bool { return false }

func (StartCombatCommand) Validate(c *Context) []string {
	if c.State.Combat != nil {
		return []string{"combat is already in progress"}
	}

	var reasons []string
	for _, kind := range splitEnemyKinds(c.Param("enemies")) {
		if !combat.KnownEnemy(kind) {
			reasons = append(reasons, fmt.Sprintf("unknown enemy kind %q", kind))
		}
	}
	return reasons
}

func (StartCombatCommand) Cost(c *Context) Cost { return nil }

func (StartCombatCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	enemyIDs := splitEnemyKinds(c.Param("enemies"))

	opts := combat.StartOptions{
		EnemyIDs:   enemyIDs,
		IsAmbush:   c.Param("ambush") == "true",
		CanFlee:    c.Param("can_flee") != "false",
		Terrain:    c.Param("terrain"),
		LocationID: c.Actor.Location,
	}

	cs, err := c.Combat.StartCombat(c.Actor, opts)
	if err != nil {
		return nil, err
	}

	c.State.Combat = cs
	c.State.Phase = session.PhaseCombat

	result := &Result{
		LogEntries: []string{fmt.Sprintf("combat started against %s", strings.Join(enemyIDs, ", "))},
	}

	if opts.IsAmbush {
		result.Message = "You are ambushed! The enemies strike first."
		runEnemyTurns(c, cs, result)
		finishCombatIfResolved(c, cs, result)
	} else if cs.Phase == combat.PhaseEnemyTurn {
		result.Message = "Combat begins. The enemy moves first."
		runEnemyTurns(c, cs, result)
		finishCombatIfResolved(c, cs, result)
	} else {
		result.Message = "Combat begins. You have the initiative."
	}

	return result, nil
}

// AttackCommand strikes an enemy on the player's combat turn, then plays out
// enemy turns until the player acts again or combat resolves.
type AttackCommand struct{}

func (AttackCommand) Type() string        { return "attack" }
func (AttackCommand) Description() string { return "Attack an enemy combatant" }

func (AttackCommand) Cooldown() time.Duration { return 0 }
func (AttackCommand) MinLevel() int           { return 1 }

func (AttackCommand) RequiredParams() []string { return nil }

func (AttackCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseCombat}
}

func (AttackCommand) Undoable() bool { return true }

func (AttackCommand) Validate(c *Context) []string {
	return validatePlayerTurn(c)
}

func (AttackCommand) Cost(c *Context) Cost {
	return Cost{character.ResourceStamina: attackStaminaCost}
}

func (AttackCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	cs := c.State.Combat

	targetID := c.Param("target")
	if targetID == "" {
		enemies := cs.AliveEnemies()
		if len(enemies) == 0 {
			return nil, fmt.Errorf("no enemies left to attack")
		}
		targetID = enemies[0].ID
	}

	res, err := c.Combat.Apply(cs, combat.Action{
		Type:     combat.ActionAttack,
		ActorID:  c.Actor.ID,
		TargetID: targetID,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Message:    res.Log[0],
		LogEntries: res.Log,
	}

	advanceAfterPlayerAction(c, cs, result, res.CombatEnd)

	return result, nil
}

// CastHealCommand restores the caster's health at the cost of mana. Usable in
// and out of combat; in combat it consumes the player's turn.
type CastHealCommand struct{}

func (CastHealCommand) Type() string        { return "cast-heal" }
func (CastHealCommand) Description() string { return "Cast a healing spell on yourself" }

func (CastHealCommand) Cooldown() time.Duration { return 10 * time.Second }
func (CastHealCommand) MinLevel() int           { return 1 }

func (CastHealCommand) RequiredParams() []string { return nil }

func (CastHealCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseExploration, session.PhaseCombat}
}

func (CastHealCommand) Undoable() bool { return true }

func (CastHealCommand) Validate(c *Context) []string {
	if c.State.Phase == session.PhaseCombat {
		return validatePlayerTurn(c)
	}
	return nil
}

func (CastHealCommand) Cost(c *Context) Cost {
	return Cost{character.ResourceMana: castHealManaCost}
}

func (CastHealCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	healed := 2 * c.Actor.SpellPower()
	before := c.Actor.Resources.Health
	c.Actor.Resources.Restore(character.ResourceHealth, healed)
	gained := c.Actor.Resources.Health - before

	result := &Result{
		Message:    fmt.Sprintf("A warm light restores %d health.", gained),
		LogEntries: []string{fmt.Sprintf("%s healed for %d", c.Actor.Name, gained)},
	}

	if cs := c.State.Combat; cs != nil {
		if pc := cs.Combatant(c.Actor.ID); pc != nil {
			pc.Health = c.Actor.Resources.Health
		}
		advanceAfterPlayerAction(c, cs, result, false)
	}

	return result, nil
}

// DefendCommand braces for incoming attacks, halving damage until the
// player's next turn.
type DefendCommand struct{}

func (DefendCommand) Type() string        { return "defend" }
func (DefendCommand) Description() string { return "Brace against incoming attacks" }

func (DefendCommand) Cooldown() time.Duration { return 0 }
func (DefendCommand) MinLevel() int           { return 1 }

func (DefendCommand) RequiredParams() []string { return nil }

func (DefendCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseCombat}
}

func (DefendCommand) Undoable() bool { return true }

func (DefendCommand) Validate(c *Context) []string {
	return validatePlayerTurn(c)
}

func (DefendCommand) Cost(c *Context) Cost { return nil }

func (DefendCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	cs := c.State.Combat

	res, err := c.Combat.Apply(cs, combat.Action{Type: combat.ActionDefend, ActorID: c.Actor.ID})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Message:    res.Log[0],
		LogEntries: res.Log,
	}

	advanceAfterPlayerAction(c, cs, result, false)

	return result, nil
}

// FleeCommand escapes combat when the encounter permits it. Fleeing leaves
// combat for good and cannot be undone.
type FleeCommand struct{}

func (FleeCommand) Type() string        { return "flee" }
func (FleeCommand) Description() string { return "Flee from combat" }

func (FleeCommand) Cooldown() time.Duration { return 0 }
func (FleeCommand) MinLevel() int           { return 1 }

func (FleeCommand) RequiredParams() []string { return nil }

func (FleeCommand) AllowedPhases() []session.Phase {
	return []session.Phase{session.PhaseCombat}
}

func (FleeCommand) Undoable() bool { return false }

func (FleeCommand) Validate(c *Context) []string {
	if reasons := validatePlayerTurn(c); len(reasons) > 0 {
		return reasons
	}
	if cs := c.State.Combat; cs != nil && !cs.CanFlee {
		return []string{"fleeing is not possible in this encounter"}
	}
	return nil
}

func (FleeCommand) Cost(c *Context) Cost {
	return Cost{character.ResourceStamina: attackStaminaCost}
}

func (FleeCommand) Execute(ctx context.Context, c *Context) (*Result, error) {
	cs := c.State.Combat

	res, err := c.Combat.Apply(cs, combat.Action{Type: combat.ActionFlee, ActorID: c.Actor.ID})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Message:    res.Log[0],
		LogEntries: res.Log,
	}

	finishCombatIfResolved(c, cs, result)

	return result, nil
}

// splitEnemyKinds parses the comma-separated enemies parameter.
func splitEnemyKinds(param string) []string {
	kinds := strings.Split(param, ",")
	for i := range kinds {
		kinds[i] = strings.TrimSpace(kinds[i])
	}
	return kinds
}

// validatePlayerTurn checks that combat is running and it is the acting
// player's turn.
func validatePlayerTurn(c *Context) []string {
	cs := c.State.Combat
	if cs == nil {
		return []string{"no combat in progress"}
	}
	if cs.Phase == combat.PhaseResolution {
		return []string{"combat is already resolved"}
	}
	current := cs.Current()
	if current == nil || current.ID != c.Actor.ID {
		return []string{"it is not your turn"}
	}
	return nil
}

// advanceAfterPlayerAction moves the turn past the acting player, plays out
// consecutive enemy turns, and folds any resolution back into session state.
func advanceAfterPlayerAction(c *Context, cs *combat.Session, result *Result, alreadyEnded bool) {
	if !alreadyEnded && cs.Phase != combat.PhaseResolution {
		c.Combat.AdvanceTurn(cs)
		runEnemyTurns(c, cs, result)
	}
	finishCombatIfResolved(c, cs, result)
}

// runEnemyTurns applies enemy actions through the same effect path as player
// actions until the turn returns to a player or combat resolves.
func runEnemyTurns(c *Context, cs *combat.Session, result *Result) {
	for cs.Phase == combat.PhaseEnemyTurn {
		enemy := cs.Current()
		if enemy == nil {
			return
		}

		action := c.Combat.ChooseEnemyAction(cs, enemy)
		res, err := c.Combat.Apply(cs, action)
		if err != nil {
			// A stuck enemy forfeits its turn rather than wedging combat.
			c.Logger.Warn("enemy action failed", zap.Error(err))
			c.Combat.AdvanceTurn(cs)
			continue
		}

		result.LogEntries = append(result.LogEntries, res.Log...)

		syncPlayerHealth(c, cs)

		if res.CombatEnd || cs.Phase == combat.PhaseResolution {
			return
		}

		c.Combat.AdvanceTurn(cs)
	}
}

// syncPlayerHealth copies the player combatant's health back onto the
// character sheet.
func syncPlayerHealth(c *Context, cs *combat.Session) {
	pc := cs.Combatant(c.Actor.ID)
	if pc == nil {
		return
	}
	c.Actor.Resources.Health = pc.Health
}

// finishCombatIfResolved folds a resolved combat back into the session:
// victory awards experience, defeat drags the character home at one health,
// fleeing simply returns to exploration.
func finishCombatIfResolved(c *Context, cs *combat.Session, result *Result) {
	syncPlayerHealth(c, cs)

	if cs.Phase != combat.PhaseResolution {
		return
	}

	switch cs.Outcome {
	case combat.OutcomeVictory:
		defeated := 0
		for _, cb := range cs.Combatants {
			if !cb.IsPlayer && cb.Health <= 0 {
				defeated++
			}
		}
		xp := defeated * xpPerEnemy
		result.ExperienceGained = xp
		if c.Actor.GainExperience(xp) {
			result.Notifications = append(result.Notifications,
				fmt.Sprintf("%s reached level %d!", c.Actor.Name, c.Actor.Level))
		}
		result.LogEntries = append(result.LogEntries, fmt.Sprintf("victory: gained %d experience", xp))

	case combat.OutcomeDefeat:
		c.Actor.Resources.Health = 1
		c.Actor.Resources.Gold /= 2
		c.Actor.Location = "village-square"
		result.LogEntries = append(result.LogEntries, "defeated: you wake up back in the village")

	case combat.OutcomeFled:
		result.LogEntries = append(result.LogEntries, "you escaped the encounter")
	}

	c.State.Combat = nil
	c.State.Phase = session.PhaseExploration
}
