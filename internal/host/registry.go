package host

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/rules"
)

// Registry holds the loaded item definitions indexed by id. It is the
// engine's live item catalog.
type Registry struct {
	items     map[string]*ItemDef
	order     []string
	byFaction map[string][]string
}

// NewRegistry indexes defs.
//
// Precondition: every def passed Validate.
// Postcondition: returns an error on a duplicate id or a magazine_ref that
// does not name an ammunition item.
func NewRegistry(defs []*ItemDef) (*Registry, error) {
	r := &Registry{
		items:     make(map[string]*ItemDef, len(defs)),
		byFaction: make(map[string][]string),
	}
	for _, d := range defs {
		if _, exists := r.items[d.ID]; exists {
			return nil, fmt.Errorf("host: item ID %q already registered", d.ID)
		}
		r.items[d.ID] = d
		r.order = append(r.order, d.ID)
		for _, f := range d.Factions {
			r.byFaction[f] = append(r.byFaction[f], d.ID)
		}
	}
	for _, d := range defs {
		if d.MagazineRef == "" {
			continue
		}
		mag, ok := r.items[d.MagazineRef]
		if !ok || mag.itemMode() != catalog.ModeAmmunition {
			return nil, fmt.Errorf("host: weapon %q references unknown magazine %q", d.ID, d.MagazineRef)
		}
	}
	return r, nil
}

// Item returns the definition for id and whether it was found.
func (r *Registry) Item(id string) (*ItemDef, bool) {
	d, ok := r.items[id]
	return d, ok
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	return len(r.items)
}

// Factions returns the faction names in sorted order.
func (r *Registry) Factions() []string {
	out := make([]string, 0, len(r.byFaction))
	for f := range r.byFaction {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ItemsByFaction lists a faction's items in load order.
func (r *Registry) ItemsByFaction(faction string) []rules.Candidate {
	ids := r.byFaction[faction]
	out := make([]rules.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.items[id].candidate())
	}
	return out
}

// IsValidResource reports whether id is registered and its asset resolves.
func (r *Registry) IsValidResource(id string) bool {
	d, ok := r.items[id]
	return ok && !d.Broken
}

// MagazineOf returns the magazine a weapon takes.
func (r *Registry) MagazineOf(weaponID string) (string, bool) {
	d, ok := r.items[weaponID]
	if !ok || d.MagazineRef == "" {
		return "", false
	}
	return d.MagazineRef, true
}

// NameOf returns the display name of id, or id itself when unknown.
func (r *Registry) NameOf(id string) string {
	if d, ok := r.items[id]; ok {
		return d.Name
	}
	return id
}

// capacityOf returns the round capacity of an ammunition item, or of the
// magazine a weapon takes.
func (r *Registry) capacityOf(id string) (string, int) {
	d, ok := r.items[id]
	if !ok {
		return "", 0
	}
	if d.MagazineRef != "" {
		return d.MagazineRef, r.items[d.MagazineRef].Capacity
	}
	return id, d.Capacity
}
