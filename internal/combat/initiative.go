package combat

import (
	"math/rand"
	"sort"
)

// initiativeDie is the size of the random tiebreaker roll added to agility.
const initiativeDie = 20

// rollInitiative assigns each combatant an initiative score: an agility-like
// base plus a seeded d20 roll. Rolls happen in roster order so a fixed seed
// always reproduces the same scores.
func rollInitiative(roster []*Combatant, agility map[string]int, rng *rand.Rand) {
	for _, c := range roster {
		c.Initiative = agility[c.ID] + rng.Intn(initiativeDie) + 1
	}
}

// orderByInitiative sorts the roster descending by initiative. The sort is
// stable, so equal scores keep roster insertion order as the tiebreak.
//
// When ambush is set, every enemy combatant is placed ahead of every player
// combatant regardless of rolled initiative; relative order within each side
// still follows initiative.
func orderByInitiative(roster []*Combatant, ambush bool) {
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].Initiative > roster[j].Initiative
	})

	if !ambush {
		return
	}

	ordered := make([]*Combatant, 0, len(roster))
	for _, c := range roster {
		if !c.IsPlayer {
			ordered = append(ordered, c)
		}
	}
	for _, c := range roster {
		if c.IsPlayer {
			ordered = append(ordered, c)
		}
	}
	copy(roster, ordered)
}
