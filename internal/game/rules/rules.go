// Package rules assigns spawn defaults to items discovered in the live
// catalog that the persisted loot map does not know yet.
package rules

import (
	"strings"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/scripting"
)

const (
	// DefaultChance is the spawn chance of an ordinary new item.
	DefaultChance = 25
	// DefaultCount is the max spawn count of an ordinary new item.
	DefaultCount = 1
	// MagazineCount is the max spawn count of ammunition containers.
	MagazineCount = 4
	// DeployableChance is the spawn chance of deployable spawn points.
	DeployableChance = 5
)

// Candidate is a live catalog item seen for the first time.
type Candidate struct {
	ResourceID string
	Type       catalog.ItemType
	Mode       catalog.ItemMode
	// Magazine is true for items that hold ammunition.
	Magazine bool
	// Deployable is true for placeable respawn points.
	Deployable bool
}

// Hook refines the heuristic defaults. *scripting.DefaultsHook satisfies it.
type Hook interface {
	Apply(facts scripting.ItemFacts, in scripting.ItemDefaults) scripting.ItemDefaults
}

// Rules builds ItemConfigs for new items.
type Rules struct {
	reserved []string
	hook     Hook
}

// New returns Rules that disable ids containing any reserved substring.
// hook may be nil.
func New(reserved []string, hook Hook) *Rules {
	return &Rules{reserved: append([]string(nil), reserved...), hook: hook}
}

// Defaults returns the spawn config for c.
//
// Postcondition: the result satisfies ItemConfig.Validate and carries c.Mode.
func (r *Rules) Defaults(c Candidate) catalog.ItemConfig {
	d := scripting.ItemDefaults{ChanceToSpawn: DefaultChance, MaxSpawnCount: DefaultCount, Enabled: true}
	if c.Magazine {
		d.MaxSpawnCount = MagazineCount
	}
	if c.Deployable {
		d.ChanceToSpawn = DeployableChance
	}
	if r.IsReserved(c.ResourceID) {
		d.Enabled = false
	}
	if r.hook != nil {
		d = r.hook.Apply(scripting.ItemFacts{
			ResourceID: c.ResourceID,
			Type:       c.Type.Key(),
			Mode:       c.Mode.String(),
			Magazine:   c.Magazine,
			Deployable: c.Deployable,
		}, d)
	}
	return catalog.ItemConfig{
		ResourceID:    c.ResourceID,
		ChanceToSpawn: d.ChanceToSpawn,
		MaxSpawnCount: d.MaxSpawnCount,
		Enabled:       d.Enabled,
		Mode:          c.Mode,
	}
}

// IsReserved reports whether id contains a reserved substring.
func (r *Rules) IsReserved(id string) bool {
	for _, s := range r.reserved {
		if s != "" && strings.Contains(id, s) {
			return true
		}
	}
	return false
}
