package host

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
)

// yamlWorldFile is the top-level YAML structure of a world file.
type yamlWorldFile struct {
	Crates     []yamlCrate     `yaml:"crates"`
	Players    []yamlPlayer    `yaml:"players"`
	Scavengers []yamlScavenger `yaml:"scavengers"`
}

type yamlCrate struct {
	ID       string        `yaml:"id"`
	Position grid.Position `yaml:"position"`
	// Types is a "|"-separated list of category keys.
	Types string `yaml:"types"`
	Slots int    `yaml:"slots"`
}

type yamlPlayer struct {
	Name     string        `yaml:"name"`
	Position grid.Position `yaml:"position"`
}

type yamlScavenger struct {
	Name       string `yaml:"name"`
	PouchSlots int    `yaml:"pouch_slots"`
}

// Player is a simulated player.
type Player struct {
	Name     string
	Position grid.Position
}

// World holds the simulated crates, players and scavengers. It is not safe
// for concurrent use; it is only touched from the scheduler's goroutine.
type World struct {
	reg        *Registry
	crates     map[grid.Handle]*Crate
	players    []*Player
	scavengers []*Scavenger
}

// LoadWorldFromFile reads and validates a world YAML file.
//
// Precondition: path must point to a valid YAML world file.
// Postcondition: Returns a validated World or a non-nil error.
func LoadWorldFromFile(path string, reg *Registry) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}
	return LoadWorldFromBytes(data, reg)
}

// LoadWorldFromBytes parses and validates a world from YAML bytes.
//
// Precondition: reg must be non-nil.
// Postcondition: Returns a validated World or a non-nil error.
func LoadWorldFromBytes(data []byte, reg *Registry) (*World, error) {
	var file yamlWorldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing world YAML: %w", err)
	}
	w := NewWorld(reg)
	var errs []error
	for _, c := range file.Crates {
		if c.ID == "" {
			errs = append(errs, errors.New("crate id must not be empty"))
			continue
		}
		if _, dup := w.crates[grid.Handle(c.ID)]; dup {
			errs = append(errs, fmt.Errorf("crate %q defined twice", c.ID))
			continue
		}
		flags, err := catalog.ParseItemType(c.Types)
		if err != nil {
			errs = append(errs, fmt.Errorf("crate %q: %w", c.ID, err))
			continue
		}
		if c.Slots < 1 {
			errs = append(errs, fmt.Errorf("crate %q: slots must be >= 1", c.ID))
			continue
		}
		w.AddCrate(NewCrate(grid.Handle(c.ID), c.Position, flags, c.Slots, reg))
	}
	for _, p := range file.Players {
		if p.Name == "" {
			errs = append(errs, errors.New("player name must not be empty"))
			continue
		}
		w.players = append(w.players, &Player{Name: p.Name, Position: p.Position})
	}
	for _, s := range file.Scavengers {
		if s.Name == "" || s.PouchSlots < 0 {
			errs = append(errs, fmt.Errorf("scavenger %q: name required and pouch_slots >= 0", s.Name))
			continue
		}
		w.scavengers = append(w.scavengers, &Scavenger{Name: s.Name, PouchSlots: s.PouchSlots, reg: reg})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("validating world: %w", errors.Join(errs...))
	}
	return w, nil
}

// NewWorld returns an empty world over reg.
func NewWorld(reg *Registry) *World {
	return &World{reg: reg, crates: make(map[grid.Handle]*Crate)}
}

// AddCrate places c in the world, replacing a crate with the same id.
func (w *World) AddCrate(c *Crate) {
	w.crates[c.ID] = c
}

// AddPlayer adds a player.
func (w *World) AddPlayer(p *Player) {
	w.players = append(w.players, p)
}

// Destroy removes a crate. The engine notices on its next access.
func (w *World) Destroy(h grid.Handle) bool {
	if _, ok := w.crates[h]; !ok {
		return false
	}
	delete(w.crates, h)
	return true
}

// Container implements loot.World.
func (w *World) Container(h grid.Handle) (loot.Container, bool) {
	c, ok := w.crates[h]
	if !ok {
		return nil, false
	}
	return c, true
}

// Crate returns the crate with id h.
func (w *World) Crate(h grid.Handle) (*Crate, bool) {
	c, ok := w.crates[h]
	return c, ok
}

// Crates returns every crate ordered by id.
func (w *World) Crates() []*Crate {
	out := make([]*Crate, 0, len(w.crates))
	for _, c := range w.crates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Players returns the simulated players.
func (w *World) Players() []*Player {
	return w.players
}

// Scavengers returns the simulated scavengers.
func (w *World) Scavengers() []*Scavenger {
	return w.scavengers
}

// PlayerPositions implements loot.Players.
func (w *World) PlayerPositions() []grid.Position {
	out := make([]grid.Position, len(w.players))
	for i, p := range w.players {
		out[i] = p.Position
	}
	return out
}
