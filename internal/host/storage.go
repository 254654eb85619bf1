package host

import (
	"fmt"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
)

// Magazine tracks the loaded round count of one magazine instance.
// Invariant: 0 <= Loaded <= Capacity.
type Magazine struct {
	ResourceID string
	Loaded     int
	Capacity   int
}

// NewMagazine returns a Magazine holding loaded rounds.
//
// Precondition:  capacity > 0 (panics otherwise); 0 <= loaded <= capacity.
// Postcondition: Loaded == loaded, Capacity == capacity.
func NewMagazine(resourceID string, loaded, capacity int) *Magazine {
	if capacity <= 0 {
		panic(fmt.Sprintf("host: NewMagazine: capacity must be > 0, got %d", capacity))
	}
	return &Magazine{ResourceID: resourceID, Loaded: min(max(loaded, 0), capacity), Capacity: capacity}
}

// IsEmpty reports whether no rounds are loaded.
func (m *Magazine) IsEmpty() bool {
	return m.Loaded <= 0
}

// Stack is one stored item instance. Magazine is the item itself for
// ammunition and the attached magazine for a weapon; nil otherwise or when
// the weapon's magazine was stripped.
type Stack struct {
	loot.Insertion
	Magazine *Magazine
}

// newStack materialises ins against the registry's magazine capacities.
func newStack(reg *Registry, ins loot.Insertion) Stack {
	st := Stack{Insertion: ins}
	magID, capacity := reg.capacityOf(ins.ResourceID)
	if capacity < 1 {
		return st
	}
	switch ins.Mode {
	case catalog.ModeAmmunition:
		st.Magazine = NewMagazine(magID, ins.Rounds(capacity), capacity)
	case catalog.ModeWeapon:
		if !ins.StripMagazine {
			st.Magazine = NewMagazine(magID, ins.WeaponRounds(capacity), capacity)
		}
	}
	return st
}

// Crate is a slot-limited loot container placed in the world.
type Crate struct {
	ID       grid.Handle
	Position grid.Position
	flags    catalog.ItemType
	slots    int
	reg      *Registry
	items    []Stack
}

// NewCrate returns an empty crate.
//
// Precondition: slots >= 1; reg is non-nil.
func NewCrate(id grid.Handle, pos grid.Position, flags catalog.ItemType, slots int, reg *Registry) *Crate {
	return &Crate{ID: id, Position: pos, flags: flags, slots: slots, reg: reg}
}

// TypeFlags implements loot.Container.
func (c *Crate) TypeFlags() catalog.ItemType {
	return c.flags
}

// InsertItem implements loot.Container. It rejects items once every slot
// is taken and items the registry does not know.
func (c *Crate) InsertItem(ins loot.Insertion) bool {
	if len(c.items) >= c.slots {
		return false
	}
	if _, ok := c.reg.Item(ins.ResourceID); !ok {
		return false
	}
	c.items = append(c.items, newStack(c.reg, ins))
	return true
}

// Items returns a copy of the stored stacks.
func (c *Crate) Items() []Stack {
	return append([]Stack(nil), c.items...)
}

// Len returns the number of occupied slots.
func (c *Crate) Len() int {
	return len(c.items)
}

// Slots returns the crate's capacity.
func (c *Crate) Slots() int {
	return c.slots
}

// TakeAll empties the crate and returns what it held.
func (c *Crate) TakeAll() []Stack {
	out := c.items
	c.items = nil
	return out
}

// Scavenger is an AI character with one weapon hand and a magazine pouch.
type Scavenger struct {
	Name       string
	PouchSlots int
	Weapon     *Stack
	Pouch      []Stack
	reg        *Registry
}

// EquipWeapon implements loot.Scavenger. An armed scavenger refuses a
// second weapon.
func (s *Scavenger) EquipWeapon(ins loot.Insertion) bool {
	if s.Weapon != nil {
		return false
	}
	st := newStack(s.reg, ins)
	s.Weapon = &st
	return true
}

// StoreMagazine implements loot.Scavenger.
func (s *Scavenger) StoreMagazine(ins loot.Insertion) bool {
	if len(s.Pouch) >= s.PouchSlots {
		return false
	}
	s.Pouch = append(s.Pouch, newStack(s.reg, ins))
	return true
}

// Rounds returns the total rounds carried in the pouch.
func (s *Scavenger) Rounds() int {
	n := 0
	for _, st := range s.Pouch {
		if st.Magazine != nil {
			n += st.Magazine.Loaded
		}
	}
	return n
}
