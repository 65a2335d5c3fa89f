package combat

// Strategy decides an enemy combatant's action for its turn. Implementations
// must be side-effect free: they inspect the session and return an intent,
// which the manager applies through the shared effect path.
type Strategy interface {
	Name() string
	ChooseAction(s *Session, enemy *Combatant) Action
}

// LowestHealthStrategy targets the living player combatant with the least
// health remaining. This is the default heuristic.
type LowestHealthStrategy struct{}

func (LowestHealthStrategy) Name() string { return "lowest_health" }

func (LowestHealthStrategy) ChooseAction(s *Session, enemy *Combatant) Action {
	players := s.AlivePlayers()
	if len(players) == 0 {
		return Action{Type: ActionDefend, ActorID: enemy.ID}
	}

	target := players[0]
	for _, p := range players[1:] {
		if p.Health < target.Health {
			target = p
		}
	}

	return Action{Type: ActionAttack, ActorID: enemy.ID, TargetID: target.ID}
}

// HighestThreatStrategy targets the living player combatant with the highest
// attack value.
type HighestThreatStrategy struct{}

func (HighestThreatStrategy) Name() string { return "highest_threat" }

func (HighestThreatStrategy) ChooseAction(s *Session, enemy *Combatant) Action {
	players := s.AlivePlayers()
	if len(players) == 0 {
		return Action{Type: ActionDefend, ActorID: enemy.ID}
	}

	target := players[0]
	for _, p := range players[1:] {
		if p.Attack > target.Attack {
			target = p
		}
	}

	return Action{Type: ActionAttack, ActorID: enemy.ID, TargetID: target.ID}
}

// StrategyByName returns the strategy registered under name, defaulting to
// lowest-health when the name is unknown.
func StrategyByName(name string) Strategy {
	switch name {
	case "highest_threat":
		return HighestThreatStrategy{}
	default:
		return LowestHealthStrategy{}
	}
}
