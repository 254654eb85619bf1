package loot_test

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/config"
	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
	"github.com/cory-johannsen/loot/internal/game/lootmap"
	"github.com/cory-johannsen/loot/internal/game/rules"
	"github.com/cory-johannsen/loot/internal/game/schedule"
)

var epoch = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeContainer struct {
	flags    catalog.ItemType
	capacity int
	reject   int
	items    []loot.Insertion
}

func (c *fakeContainer) TypeFlags() catalog.ItemType { return c.flags }

func (c *fakeContainer) InsertItem(ins loot.Insertion) bool {
	if c.reject > 0 {
		c.reject--
		return false
	}
	if len(c.items) >= c.capacity {
		return false
	}
	c.items = append(c.items, ins)
	return true
}

type fakeWorld struct {
	containers map[grid.Handle]*fakeContainer
}

func (w *fakeWorld) Container(h grid.Handle) (loot.Container, bool) {
	c, ok := w.containers[h]
	if !ok {
		return nil, false
	}
	return c, true
}

type fakePlayers struct {
	positions []grid.Position
}

func (p *fakePlayers) PlayerPositions() []grid.Position { return p.positions }

type fakeItems struct {
	byFaction map[string][]rules.Candidate
	invalid   map[string]bool
	magazines map[string]string
}

func (f *fakeItems) Factions() []string {
	var out []string
	for _, name := range []string{"US", "USSR", "FIA"} {
		if _, ok := f.byFaction[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (f *fakeItems) ItemsByFaction(faction string) []rules.Candidate { return f.byFaction[faction] }
func (f *fakeItems) IsValidResource(id string) bool                  { return !f.invalid[id] }
func (f *fakeItems) MagazineOf(weaponID string) (string, bool) {
	m, ok := f.magazines[weaponID]
	return m, ok
}

func defaultItems() *fakeItems {
	return &fakeItems{
		byFaction: map[string][]rules.Candidate{
			"US": {
				{ResourceID: "M16", Type: catalog.TypeRifle, Mode: catalog.ModeWeapon},
				{ResourceID: "Mag556", Type: catalog.TypeRifle, Mode: catalog.ModeAmmunition, Magazine: true},
				{ResourceID: "Bandage", Type: catalog.TypeMedical, Mode: catalog.ModeConsumable},
				{ResourceID: "US_MedicalKit", Type: catalog.TypeMedical, Mode: catalog.ModeConsumable},
			},
			"USSR": {
				{ResourceID: "AK74", Type: catalog.TypeRifle, Mode: catalog.ModeWeapon},
				{ResourceID: "Mag545", Type: catalog.TypeRifle, Mode: catalog.ModeAmmunition, Magazine: true},
				{ResourceID: "Bandage", Type: catalog.TypeMedical, Mode: catalog.ModeConsumable},
			},
		},
		invalid:   map[string]bool{},
		magazines: map[string]string{"M16": "Mag556", "AK74": "Mag545"},
	}
}

type memSink struct {
	events []loot.SpawnEvent
}

func (s *memSink) Record(ev loot.SpawnEvent) { s.events = append(s.events, ev) }

type harness struct {
	clock   *schedule.VirtualClock
	queue   *schedule.Queue
	engine  *loot.Engine
	world   *fakeWorld
	players *fakePlayers
	items   *fakeItems
	sink    *memSink
	store   *lootmap.Store
	cfg     config.EngineConfig
}

func engineConfig(dir string) config.EngineConfig {
	return config.EngineConfig{
		ProfileDir:         dir,
		StartupGrace:       5 * time.Second,
		PlayerTick:         10 * time.Second,
		TrickleDelay:       2 * time.Second,
		TrickleJitterMin:   100 * time.Millisecond,
		TrickleJitterMax:   5 * time.Second,
		DriverResolution:   50 * time.Millisecond,
		SearchBaseDuration: 2 * time.Second,
	}
}

func newHarnessIn(dir string, seed uint64, logger *zap.Logger) *harness {
	h := &harness{
		clock:   schedule.NewVirtualClock(epoch),
		world:   &fakeWorld{containers: map[grid.Handle]*fakeContainer{}},
		players: &fakePlayers{},
		items:   defaultItems(),
		sink:    &memSink{},
		cfg:     engineConfig(dir),
	}
	h.queue = schedule.NewQueue(h.clock, logger)
	h.store = lootmap.NewStore(filepath.Join(dir, config.LootMapFileName), false, logger)
	h.engine = loot.NewEngine(h.cfg, loot.Deps{
		Store:     h.store,
		Rules:     rules.New([]string{"RearmingKit", "MedicalKit"}, nil),
		World:     h.world,
		Items:     h.items,
		Players:   h.players,
		Scheduler: h.queue,
		Roller:    dice.NewLoggedRoller(dice.NewSeededSource(seed), logger),
		Sink:      h.sink,
		Logger:    logger,
	})
	return h
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessIn(t.TempDir(), 42, zap.NewNop())
}

func (h *harness) addContainer(id grid.Handle, pos grid.Position, flags catalog.ItemType) *fakeContainer {
	c := &fakeContainer{flags: flags, capacity: 100}
	h.world.containers[id] = c
	h.engine.RegisterContainer(id, pos)
	return c
}

// saveLootMap writes lm where the engine will bootstrap from.
func (h *harness) saveLootMap(t *testing.T, lm *lootmap.LootMap) {
	t.Helper()
	if err := h.store.Save(lm); err != nil {
		t.Fatalf("save loot map: %v", err)
	}
}

func (h *harness) advance(d time.Duration) {
	schedule.Advance(h.queue, h.clock, d)
}

// initialize runs Initialize and the startup grace period.
func (h *harness) initialize(t *testing.T) {
	t.Helper()
	if err := h.engine.Initialize(t.Context()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	h.advance(h.cfg.StartupGrace)
	if !h.engine.Initialized() {
		t.Fatal("engine not initialized after grace period")
	}
}
