// Package character defines the player character model shared by the engine,
// command framework and combat subsystem.
package character

// Attributes are the character's rolled ability scores. Agility drives
// initiative in combat; strength and intellect scale physical and magical
// effects.
type Attributes struct {
	Strength  int `json:"strength"`
	Agility   int `json:"agility"`
	Intellect int `json:"intellect"`
	Vitality  int `json:"vitality"`
}

// Character is a player character. Characters are owned by sessions and
// mutated only through the command pipeline.
type Character struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Name       string         `json:"name"`
	Level      int            `json:"level"`
	Experience int            `json:"experience"`
	Attributes Attributes     `json:"attributes"`
	Resources  *ResourcePool  `json:"resources"`
	Location   string         `json:"location"`
	Inventory  map[string]int `json:"inventory"`
}

// New creates a level 1 character with default attributes and full resources.
func New(id, userID, name string) *Character {
	return &Character{
		ID:     id,
		UserID: userID,
		Name:   name,
		Level:  1,
		Attributes: Attributes{
			Strength:  10,
			Agility:   10,
			Intellect: 10,
			Vitality:  10,
		},
		Resources: NewResourcePool(100, 50, 50, 10),
		Location:  "village-square",
		Inventory: make(map[string]int),
	}
}

// IsAlive reports whether the character has positive health.
func (c *Character) IsAlive() bool {
	return c.Resources != nil && c.Resources.Health > 0
}

// AttackPower derives the character's physical damage from strength and level.
func (c *Character) AttackPower() int {
	return 5 + c.Attributes.Strength/2 + c.Level
}

// SpellPower derives the character's magical effect strength from intellect
// and level.
func (c *Character) SpellPower() int {
	return 5 + c.Attributes.Intellect/2 + c.Level
}

// GainExperience adds experience and levels the character up every 100 points.
// Leveling restores all resources and raises the health maximum.
func (c *Character) GainExperience(amount int) (leveled bool) {
	if amount <= 0 {
		return false
	}

	c.Experience += amount
	for c.Experience >= c.Level*100 {
		c.Experience -= c.Level * 100
		c.Level++
		c.Resources.MaxHealth += 10
		c.Resources.MaxMana += 5
		c.Resources.MaxStamina += 5
		c.Resources.RestoreAll()
		leveled = true
	}

	return leveled
}

// Copy creates a deep copy of the character, including resources and inventory.
func (c *Character) Copy() *Character {
	cp := *c
	if c.Resources != nil {
		cp.Resources = c.Resources.Copy()
	}
	cp.Inventory = make(map[string]int, len(c.Inventory))
	for item, count := range c.Inventory {
		cp.Inventory[item] = count
	}
	return &cp
}
