package combat

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/tiagofur/rpg-ai-sub004/internal/character"
	"go.uber.org/zap"
)

// enemyTemplate describes one spawnable enemy kind.
type enemyTemplate struct {
	Name    string
	Health  int
	Attack  int
	Defense int
	Agility int
}

// bestiary maps enemy kind ids to their templates.
var bestiary = map[string]enemyTemplate{
	"wolf":     {Name: "Wolf", Health: 30, Attack: 8, Defense: 2, Agility: 14},
	"goblin":   {Name: "Goblin", Health: 25, Attack: 6, Defense: 3, Agility: 12},
	"bandit":   {Name: "Bandit", Health: 40, Attack: 10, Defense: 4, Agility: 10},
	"skeleton": {Name: "Skeleton", Health: 35, Attack: 9, Defense: 5, Agility: 8},
	"ogre":     {Name: "Ogre", Health: 80, Attack: 14, Defense: 6, Agility: 6},
}

// KnownEnemy reports whether kind exists in the bestiary.
func KnownEnemy(kind string) bool {
	_, ok := bestiary[kind]
	return ok
}

// StartOptions configures a new combat.
type StartOptions struct {
	EnemyIDs   []string
	IsAmbush   bool
	CanFlee    bool
	Terrain    string
	LocationID string
}

// ActionResult reports the outcome of one applied combat action.
type ActionResult struct {
	Log       []string
	Damage    int
	TargetID  string
	Defeated  bool
	CombatEnd bool
}

// Manager owns the combat state machine. It composes initiative ordering and
// the enemy decision strategy, and applies player and enemy actions through
// one effect path so both sides share logging semantics.
type Manager struct {
	seed     int64
	strategy Strategy
	logger   *zap.Logger
}

// NewManager creates a combat manager. A zero seed means every combat rolls
// from a time-derived seed; a non-zero seed makes initiative reproducible.
func NewManager(seed int64, strategy Strategy, logger *zap.Logger) *Manager {
	if strategy == nil {
		strategy = LowestHealthStrategy{}
	}
	return &Manager{
		seed:     seed,
		strategy: strategy,
		logger:   logger,
	}
}

// Strategy returns the enemy decision strategy in use.
func (m *Manager) Strategy() Strategy {
	return m.strategy
}

// StartCombat builds the combatant roster from the acting character plus the
// requested enemies, rolls initiative, and resolves the INITIATIVE phase to
// the leading combatant's turn phase.
func (m *Manager) StartCombat(actor *character.Character, opts StartOptions) (*Session, error) {
	if len(opts.EnemyIDs) == 0 {
		return nil, fmt.Errorf("cannot start combat without enemies")
	}

	roster := make([]*Combatant, 0, len(opts.EnemyIDs)+1)
	agility := make(map[string]int, len(opts.EnemyIDs)+1)

	pc := &Combatant{
		ID:        actor.ID,
		Name:      actor.Name,
		IsPlayer:  true,
		Health:    actor.Resources.Health,
		MaxHealth: actor.Resources.MaxHealth,
		Attack:    actor.AttackPower(),
		Defense:   actor.Attributes.Vitality / 2,
	}
	roster = append(roster, pc)
	agility[pc.ID] = actor.Attributes.Agility

	for _, kind := range opts.EnemyIDs {
		tpl, ok := bestiary[kind]
		if !ok {
			return nil, fmt.Errorf("unknown enemy kind %q", kind)
		}
		enemy := &Combatant{
			ID:        uuid.NewString(),
			Name:      tpl.Name,
			Health:    tpl.Health,
			MaxHealth: tpl.Health,
			Attack:    tpl.Attack,
			Defense:   tpl.Defense,
		}
		roster = append(roster, enemy)
		agility[enemy.ID] = tpl.Agility
	}

	seed := m.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	rollInitiative(roster, agility, rng)
	orderByInitiative(roster, opts.IsAmbush)

	for i, c := range roster {
		c.Position = i
	}

	cs := &Session{
		ID:         uuid.NewString(),
		Combatants: roster,
		TurnIndex:  0,
		Round:      1,
		Phase:      PhaseInitiative,
		IsAmbush:   opts.IsAmbush,
		CanFlee:    opts.CanFlee,
		Terrain:    opts.Terrain,
		LocationID: opts.LocationID,
	}

	// INITIATIVE immediately resolves to the leader's turn phase.
	cs.Phase = phaseFor(cs.Current())

	m.logger.Info("combat started",
		zap.String("combat_id", cs.ID),
		zap.Int("combatants", len(roster)),
		zap.Bool("ambush", opts.IsAmbush),
		zap.String("phase", cs.Phase.String()),
	)

	return cs, nil
}

func phaseFor(c *Combatant) Phase {
	if c == nil {
		return PhaseResolution
	}
	if c.IsPlayer {
		return PhasePlayerTurn
	}
	return PhaseEnemyTurn
}

// AdvanceTurn moves to the next living combatant, incrementing the round
// counter once per full pass. Combatants with non-positive health are
// skipped. Returns the combatant whose turn begins, or nil when no living
// combatant remains.
func (m *Manager) AdvanceTurn(s *Session) *Combatant {
	if s.Phase == PhaseResolution {
		return nil
	}

	n := len(s.Combatants)
	for i := 0; i < n; i++ {
		s.TurnIndex++
		if s.TurnIndex >= n {
			s.TurnIndex = 0
			s.Round++
		}
		if c := s.Current(); c.IsAlive() {
			c.Defending = false
			s.Phase = phaseFor(c)
			return c
		}
	}

	s.Phase = PhaseResolution
	return nil
}

// Apply executes a combat action against the session. Both player and enemy
// actions flow through here so that damage, defeat and log semantics are
// identical for both sides.
func (m *Manager) Apply(s *Session, action Action) (*ActionResult, error) {
	actor := s.Combatant(action.ActorID)
	if actor == nil {
		return nil, fmt.Errorf("unknown combatant %q", action.ActorID)
	}
	if !actor.IsAlive() {
		return nil, fmt.Errorf("combatant %s cannot act", actor.Name)
	}

	res := &ActionResult{}

	switch action.Type {
	case ActionAttack:
		target := s.Combatant(action.TargetID)
		if target == nil {
			return nil, fmt.Errorf("unknown target %q", action.TargetID)
		}
		if !target.IsAlive() {
			return nil, fmt.Errorf("target %s is already down", target.Name)
		}

		damage := actor.Attack - target.Defense/2
		if target.Defending {
			damage /= 2
		}
		if damage < 1 {
			damage = 1
		}

		target.Health -= damage
		res.Damage = damage
		res.TargetID = target.ID
		res.Log = append(res.Log, fmt.Sprintf("%s attacks %s for %d damage", actor.Name, target.Name, damage))

		if target.Health <= 0 {
			target.Health = 0
			res.Defeated = true
			res.Log = append(res.Log, fmt.Sprintf("%s is defeated", target.Name))
		}

	case ActionDefend:
		actor.Defending = true
		res.Log = append(res.Log, fmt.Sprintf("%s takes a defensive stance", actor.Name))

	case ActionFlee:
		if !s.CanFlee {
			return nil, fmt.Errorf("fleeing is not possible here")
		}
		actor.Fled = true
		res.Log = append(res.Log, fmt.Sprintf("%s flees from combat", actor.Name))
		if actor.IsPlayer && len(s.AlivePlayers()) == 0 {
			s.Phase = PhaseResolution
			s.Outcome = OutcomeFled
			res.CombatEnd = true
			return res, nil
		}

	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}

	if ended := m.checkEnd(s); ended {
		res.CombatEnd = true
		res.Log = append(res.Log, fmt.Sprintf("combat ends: %s", s.Outcome))
	}

	return res, nil
}

// ChooseEnemyAction delegates to the configured strategy for the given enemy.
func (m *Manager) ChooseEnemyAction(s *Session, enemy *Combatant) Action {
	return m.strategy.ChooseAction(s, enemy)
}

// checkEnd transitions to RESOLUTION when one side has no living combatants.
func (m *Manager) checkEnd(s *Session) bool {
	if s.Phase == PhaseResolution {
		return true
	}

	switch {
	case len(s.AliveEnemies()) == 0:
		s.Phase = PhaseResolution
		s.Outcome = OutcomeVictory
	case len(s.AlivePlayers()) == 0:
		s.Phase = PhaseResolution
		s.Outcome = OutcomeDefeat
	default:
		return false
	}

	m.logger.Info("combat resolved",
		zap.String("combat_id", s.ID),
		zap.String("outcome", string(s.Outcome)),
		zap.Int("rounds", s.Round),
	)

	return true
}
