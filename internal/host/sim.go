package host

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
)

// Engine is the part of the loot engine the simulation drives.
type Engine interface {
	RegisterContainer(h grid.Handle, pos grid.Position)
	MarkInteracted(h grid.Handle) error
	SearchDuration(h grid.Handle) time.Duration
	EquipScavenger(target loot.Scavenger) (loot.Loadout, error)
	Initialized() bool
}

// Poster hands work to the goroutine that owns the engine.
type Poster interface {
	Post(fn func())
}

// SimConfig tunes the wander loop.
type SimConfig struct {
	// Tick is how often players move.
	Tick time.Duration
	// Step bounds each player's per-tick movement along X and Z.
	Step int
	// Reach is the distance within which a player searches a crate.
	Reach float64
}

// DefaultSimConfig returns the dev server's wander settings.
func DefaultSimConfig() SimConfig {
	return SimConfig{Tick: 3 * time.Second, Step: 40, Reach: 25}
}

// Sim moves players around the world and has them search nearby crates.
type Sim struct {
	world    *World
	engine   Engine
	roller   *dice.Roller
	cfg      SimConfig
	logger   *zap.Logger
	equipped bool
}

// NewSim returns a Sim over world.
//
// Precondition: cfg.Tick > 0; every argument is non-nil.
func NewSim(world *World, engine Engine, roller *dice.Roller, cfg SimConfig, logger *zap.Logger) *Sim {
	return &Sim{world: world, engine: engine, roller: roller, cfg: cfg, logger: logger}
}

// RegisterAll registers every crate with the engine.
func (s *Sim) RegisterAll() int {
	crates := s.world.Crates()
	for _, c := range crates {
		s.engine.RegisterContainer(c.ID, c.Position)
	}
	return len(crates)
}

// Step moves every player, searches crates in reach and, once the engine is
// initialized, equips the scavengers. It returns the number of crates
// searched.
func (s *Sim) Step() int {
	if !s.equipped && s.engine.Initialized() {
		s.equipScavengers()
	}
	step := dice.Range{Min: -s.cfg.Step, Max: s.cfg.Step}
	searched := 0
	for _, p := range s.world.Players() {
		p.Position.X += float64(s.roller.Roll("wander_x", step))
		p.Position.Z += float64(s.roller.Roll("wander_z", step))
		for _, c := range s.world.Crates() {
			if distance(p.Position, c.Position) > s.cfg.Reach {
				continue
			}
			if s.search(p, c) {
				searched++
			}
		}
	}
	return searched
}

func (s *Sim) search(p *Player, c *Crate) bool {
	took := c.TakeAll()
	if err := s.engine.MarkInteracted(c.ID); err != nil {
		s.logger.Debug("search ignored", zap.String("crate", string(c.ID)), zap.Error(err))
		return false
	}
	s.logger.Info("crate searched",
		zap.String("player", p.Name),
		zap.String("crate", string(c.ID)),
		zap.Int("taken", len(took)),
		zap.Duration("next_search", s.engine.SearchDuration(c.ID)),
	)
	return true
}

func (s *Sim) equipScavengers() {
	s.equipped = true
	for _, sc := range s.world.Scavengers() {
		out, err := s.engine.EquipScavenger(sc)
		if err != nil {
			s.logger.Warn("scavenger loadout failed", zap.String("scavenger", sc.Name), zap.Error(err))
			continue
		}
		s.logger.Info("scavenger equipped",
			zap.String("scavenger", sc.Name),
			zap.String("weapon", out.Weapon),
			zap.Int("magazines", out.Magazines),
			zap.Int("rounds", sc.Rounds()),
		)
	}
}

// Run posts Step onto q every Tick until ctx is done.
//
// Postcondition: Returns nil once ctx is cancelled.
func (s *Sim) Run(ctx context.Context, q Poster) error {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			q.Post(func() { s.Step() })
		}
	}
}

func distance(a, b grid.Position) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}
