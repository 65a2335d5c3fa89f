package character

// ResourceType identifies a spendable character resource.
type ResourceType string

const (
	ResourceHealth  ResourceType = "HEALTH"
	ResourceMana    ResourceType = "MANA"
	ResourceStamina ResourceType = "STAMINA"
	ResourceGold    ResourceType = "GOLD"
)

// ResourcePool tracks a character's spendable resources. Health, mana and
// stamina are bounded by their maximums; gold is unbounded above.
//
// The pool carries no internal locking: all mutation happens under the
// session lock, and pools are deep-copied into command working state.
type ResourcePool struct {
	Health     int `json:"health"`
	MaxHealth  int `json:"maxHealth"`
	Mana       int `json:"mana"`
	MaxMana    int `json:"maxMana"`
	Stamina    int `json:"stamina"`
	MaxStamina int `json:"maxStamina"`
	Gold       int `json:"gold"`
}

// NewResourcePool creates a pool filled to the given maximums.
func NewResourcePool(maxHealth, maxMana, maxStamina, gold int) *ResourcePool {
	return &ResourcePool{
		Health:     maxHealth,
		MaxHealth:  maxHealth,
		Mana:       maxMana,
		MaxMana:    maxMana,
		Stamina:    maxStamina,
		MaxStamina: maxStamina,
		Gold:       gold,
	}
}

// Get returns the current amount of a resource type.
func (p *ResourcePool) Get(resource ResourceType) int {
	switch resource {
	case ResourceHealth:
		return p.Health
	case ResourceMana:
		return p.Mana
	case ResourceStamina:
		return p.Stamina
	case ResourceGold:
		return p.Gold
	default:
		return 0
	}
}

// CanAfford reports whether the pool holds at least amount of resource.
func (p *ResourcePool) CanAfford(resource ResourceType, amount int) bool {
	if amount <= 0 {
		return true
	}
	return p.Get(resource) >= amount
}

// Spend attempts to debit amount of resource from the pool.
// Returns false without mutation when the pool holds less than amount.
func (p *ResourcePool) Spend(resource ResourceType, amount int) bool {
	if amount <= 0 {
		return true
	}
	if !p.CanAfford(resource, amount) {
		return false
	}

	switch resource {
	case ResourceHealth:
		p.Health -= amount
	case ResourceMana:
		p.Mana -= amount
	case ResourceStamina:
		p.Stamina -= amount
	case ResourceGold:
		p.Gold -= amount
	default:
		return false
	}

	return true
}

// Restore credits amount of resource, clamped to the resource maximum.
func (p *ResourcePool) Restore(resource ResourceType, amount int) {
	if amount <= 0 {
		return
	}

	switch resource {
	case ResourceHealth:
		p.Health += amount
		if p.Health > p.MaxHealth {
			p.Health = p.MaxHealth
		}
	case ResourceMana:
		p.Mana += amount
		if p.Mana > p.MaxMana {
			p.Mana = p.MaxMana
		}
	case ResourceStamina:
		p.Stamina += amount
		if p.Stamina > p.MaxStamina {
			p.Stamina = p.MaxStamina
		}
	case ResourceGold:
		p.Gold += amount
	}
}

// RestoreAll refills health, mana and stamina to their maximums.
func (p *ResourcePool) RestoreAll() {
	p.Health = p.MaxHealth
	p.Mana = p.MaxMana
	p.Stamina = p.MaxStamina
}

// Copy creates a deep copy of the pool.
func (p *ResourcePool) Copy() *ResourcePool {
	cp := *p
	return &cp
}
