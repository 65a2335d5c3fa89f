// Package combat implements the turn-based combat subsystem: the combat
// state machine, initiative ordering and enemy decision-making.
package combat

// Phase represents the current stage of the combat state machine.
type Phase int

const (
	PhaseInitiative Phase = iota
	PhasePlayerTurn
	PhaseEnemyTurn
	PhaseResolution
)

func (p Phase) String() string {
	switch p {
	case PhaseInitiative:
		return "INITIATIVE"
	case PhasePlayerTurn:
		return "PLAYER_TURN"
	case PhaseEnemyTurn:
		return "ENEMY_TURN"
	case PhaseResolution:
		return "RESOLUTION"
	default:
		return "UNKNOWN"
	}
}

// Outcome is how a resolved combat ended.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeVictory Outcome = "VICTORY"
	OutcomeDefeat  Outcome = "DEFEAT"
	OutcomeFled    Outcome = "FLED"
)

// Combatant is a single participant in combat.
type Combatant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPlayer   bool   `json:"isPlayer"`
	Initiative int    `json:"initiative"`
	Health     int    `json:"health"`
	MaxHealth  int    `json:"maxHealth"`
	Attack     int    `json:"attack"`
	Defense    int    `json:"defense"`
	Position   int    `json:"position"`
	Defending  bool   `json:"defending"`
	Fled       bool   `json:"fled"`
}

// IsAlive reports whether the combatant can still act.
func (c *Combatant) IsAlive() bool {
	return c.Health > 0 && !c.Fled
}

// Session is one running combat. Combatants holds the turn order, fixed at
// combat start; TurnIndex points at the combatant whose turn it is.
type Session struct {
	ID         string       `json:"id"`
	Combatants []*Combatant `json:"combatants"`
	TurnIndex  int          `json:"turnIndex"`
	Round      int          `json:"round"`
	Phase      Phase        `json:"phase"`
	IsAmbush   bool         `json:"isAmbush"`
	CanFlee    bool         `json:"canFlee"`
	Terrain    string       `json:"terrain,omitempty"`
	LocationID string       `json:"locationId,omitempty"`
	Outcome    Outcome      `json:"outcome,omitempty"`
}

// Current returns the combatant whose turn it is, or nil for an empty roster.
func (s *Session) Current() *Combatant {
	if len(s.Combatants) == 0 {
		return nil
	}
	return s.Combatants[s.TurnIndex]
}

// Combatant looks up a combatant by id.
func (s *Session) Combatant(id string) *Combatant {
	for _, c := range s.Combatants {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// AlivePlayers returns all living player-side combatants.
func (s *Session) AlivePlayers() []*Combatant {
	var out []*Combatant
	for _, c := range s.Combatants {
		if c.IsPlayer && c.IsAlive() {
			out = append(out, c)
		}
	}
	return out
}

// AliveEnemies returns all living enemy-side combatants.
func (s *Session) AliveEnemies() []*Combatant {
	var out []*Combatant
	for _, c := range s.Combatants {
		if !c.IsPlayer && c.IsAlive() {
			out = append(out, c)
		}
	}
	return out
}

// Copy creates a deep copy of the combat session.
func (s *Session) Copy() *Session {
	cp := *s
	cp.Combatants = make([]*Combatant, len(s.Combatants))
	for i, c := range s.Combatants {
		cc := *c
		cp.Combatants[i] = &cc
	}
	return &cp
}

// ActionType identifies a combat action.
type ActionType string

const (
	ActionAttack ActionType = "ATTACK"
	ActionDefend ActionType = "DEFEND"
	ActionFlee   ActionType = "FLEE"
)

// Action is one combatant's intent for its turn. Actions carry no side
// effects; the manager applies them through a single effect path shared by
// players and enemies.
type Action struct {
	Type     ActionType `json:"type"`
	ActorID  string     `json:"actorId"`
	TargetID string     `json:"targetId,omitempty"`
}
