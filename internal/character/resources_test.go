package character

import (
	"testing"
)

func TestResourcePool_Spend(t *testing.T) {
	pool := NewResourcePool(100, 50, 50, 10)

	if !pool.Spend(ResourceMana, 20) {
		t.Error("expected to spend 20 mana")
	}
	if pool.Mana != 30 {
		t.Errorf("expected 30 mana remaining, got %d", pool.Mana)
	}

	if !pool.Spend(ResourceStamina, 50) {
		t.Error("expected to spend all stamina")
	}
	if pool.Stamina != 0 {
		t.Errorf("expected 0 stamina remaining, got %d", pool.Stamina)
	}

	// Insufficient funds leave the pool untouched.
	if pool.Spend(ResourceMana, 31) {
		t.Error("expected overspend to fail")
	}
	if pool.Mana != 30 {
		t.Errorf("expected mana unchanged after failed spend, got %d", pool.Mana)
	}
}

func TestResourcePool_RestoreClampsToMax(t *testing.T) {
	pool := NewResourcePool(100, 50, 50, 0)
	pool.Spend(ResourceHealth, 40)

	pool.Restore(ResourceHealth, 1000)
	if pool.Health != 100 {
		t.Errorf("expected health clamped to 100, got %d", pool.Health)
	}

	// Gold has no ceiling.
	pool.Restore(ResourceGold, 1000)
	if pool.Gold != 1000 {
		t.Errorf("expected 1000 gold, got %d", pool.Gold)
	}
}

func TestResourcePool_Copy(t *testing.T) {
	pool := NewResourcePool(100, 50, 50, 10)
	cp := pool.Copy()

	cp.Spend(ResourceMana, 50)
	if pool.Mana != 50 {
		t.Errorf("expected original pool unchanged, got %d mana", pool.Mana)
	}
}

func TestCharacter_GainExperience(t *testing.T) {
	c := New("c1", "u1", "Hero")
	c.Resources.Spend(ResourceHealth, 50)

	if leveled := c.GainExperience(50); leveled {
		t.Error("expected no level up at 50 xp")
	}

	leveled := c.GainExperience(60)
	if !leveled {
		t.Fatal("expected level up at 110 xp")
	}
	if c.Level != 2 {
		t.Errorf("expected level 2, got %d", c.Level)
	}
	if c.Experience != 10 {
		t.Errorf("expected 10 xp carried over, got %d", c.Experience)
	}
	if c.Resources.Health != c.Resources.MaxHealth {
		t.Error("expected full health after level up")
	}
	if c.Resources.MaxHealth != 110 {
		t.Errorf("expected max health 110, got %d", c.Resources.MaxHealth)
	}
}

func TestCharacter_CopyIsDeep(t *testing.T) {
	c := New("c1", "u1", "Hero")
	c.Inventory["potion"] = 2

	cp := c.Copy()
	cp.Inventory["potion"] = 5
	cp.Resources.Spend(ResourceMana, 10)

	if c.Inventory["potion"] != 2 {
		t.Error("expected original inventory unchanged")
	}
	if c.Resources.Mana != 50 {
		t.Error("expected original resources unchanged")
	}
}
