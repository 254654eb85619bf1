// Package loot orchestrates loot distribution: catalog bootstrap, the global
// spawn pass, per-container trickle refills and the player proximity tick.
//
// Engine is single-threaded. Every method must be called from the goroutine
// draining its Scheduler; other goroutines hand work over with
// schedule.Queue.Post.
package loot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/config"
	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/lootmap"
	"github.com/cory-johannsen/loot/internal/game/respawn"
	"github.com/cory-johannsen/loot/internal/game/rules"
	"github.com/cory-johannsen/loot/internal/game/schedule"
)

var (
	// ErrNotInitialized is returned before the catalog has been built.
	ErrNotInitialized = errors.New("loot: engine not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("loot: engine already initialized")
	// ErrUnknownContainer is returned for handles that are not registered.
	ErrUnknownContainer = errors.New("loot: unknown container")
	// ErrUnknownItem is returned for resource ids the catalog has never loaded.
	ErrUnknownItem = errors.New("loot: unknown item")
	// ErrDeadZone is returned when a placement targets a cell next to a player.
	ErrDeadZone = errors.New("loot: container is inside a player dead zone")
	// ErrInsertRejected is returned when storage rejects an item twice.
	ErrInsertRejected = errors.New("loot: container rejected item")
)

// Deps are the engine's collaborators.
type Deps struct {
	Store     *lootmap.Store
	Rules     *rules.Rules
	World     World
	Items     ItemCatalog
	Players   Players
	Scheduler schedule.Scheduler
	Roller    *dice.Roller
	// Sink may be nil.
	Sink   EventSink
	Logger *zap.Logger
}

// ResetListener is told when a container returns to Fresh, with the search
// duration that now applies to it.
type ResetListener func(h grid.Handle, search time.Duration)

// Engine owns the loot grid, catalog and respawn state of one world.
type Engine struct {
	cfg     config.EngineConfig
	store   *lootmap.Store
	rules   *rules.Rules
	world   World
	items   ItemCatalog
	players Players
	sched   schedule.Scheduler
	roller  *dice.Roller
	sink    EventSink
	logger  *zap.Logger

	initializing bool
	initialized  bool
	tunables     lootmap.Tunables
	catalog      *catalog.Catalog
	modes        map[string]catalog.ItemMode

	grid       *grid.Index
	registered map[grid.Handle]grid.Position

	tracker   *respawn.Tracker
	respawner *respawn.Scheduler
	proximity *respawn.Proximity
	trickles  map[grid.Handle]schedule.TaskID

	initTask    schedule.TaskID
	playerTask  schedule.TaskID
	respawnTask schedule.TaskID

	resetListeners []ResetListener
}

// NewEngine returns an uninitialized Engine. Containers may register before
// Initialize; they are indexed with the default cell size until the loot map
// is loaded.
//
// Precondition: every Deps field except Sink must be non-nil.
func NewEngine(cfg config.EngineConfig, deps Deps) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      deps.Store,
		rules:      deps.Rules,
		world:      deps.World,
		items:      deps.Items,
		players:    deps.Players,
		sched:      deps.Scheduler,
		roller:     deps.Roller,
		sink:       deps.Sink,
		logger:     deps.Logger,
		tunables:   lootmap.DefaultTunables(),
		catalog:    catalog.New(),
		modes:      make(map[string]catalog.ItemMode),
		grid:       grid.NewIndex(grid.DefaultCellSize),
		registered: make(map[grid.Handle]grid.Position),
		tracker:    respawn.NewTracker(),
		trickles:   make(map[grid.Handle]schedule.TaskID),
	}
}

// RegisterContainer indexes h at pos. Registering again moves h, removing
// it from the cell of its previous registration.
//
// Postcondition: the grid holds h exactly once, in the cell of pos.
func (e *Engine) RegisterContainer(h grid.Handle, pos grid.Position) {
	if old, ok := e.registered[h]; ok {
		e.grid.RemoveByPosition(old, h)
	}
	e.registered[h] = pos
	e.grid.InsertByPosition(pos, h)
}

// UnregisterContainer forgets h and cancels its pending refill. It is
// idempotent.
//
// Postcondition: h is in neither the grid nor the tracker.
func (e *Engine) UnregisterContainer(h grid.Handle) {
	pos, ok := e.registered[h]
	if !ok {
		return
	}
	e.grid.RemoveByPosition(pos, h)
	delete(e.registered, h)
	e.tracker.Remove(h)
	if id, ok := e.trickles[h]; ok {
		e.sched.Cancel(id)
		delete(e.trickles, h)
	}
}

// IsRegistered reports whether h is registered.
func (e *Engine) IsRegistered(h grid.Handle) bool {
	_, ok := e.registered[h]
	return ok
}

// MarkInteracted records that a player opened h now.
//
// Postcondition: Returns ErrUnknownContainer if h is not registered.
func (e *Engine) MarkInteracted(h grid.Handle) error {
	if !e.IsRegistered(h) {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, h)
	}
	e.tracker.Touch(h, e.sched.Now())
	return nil
}

// State returns h's respawn state.
func (e *Engine) State(h grid.Handle) respawn.State {
	return e.tracker.State(h, e.sched.Now(), e.tunables.RespawnDelay())
}

// CanRespawn reports whether h was interacted with and has waited out the
// respawn delay.
func (e *Engine) CanRespawn(h grid.Handle) bool {
	return e.State(h) == respawn.RespawnEligible
}

// SearchDuration returns how long searching h takes: the base duration
// scaled by the unsearched ratio for fresh containers and by the searched
// ratio once interacted with.
func (e *Engine) SearchDuration(h grid.Handle) time.Duration {
	ratio := e.tunables.UnsearchedTimeRatio
	if e.tracker.Contains(h) {
		ratio = e.tunables.SearchedTimeRatio
	}
	return time.Duration(float64(e.cfg.SearchBaseDuration) * ratio)
}

// OnLootReset registers fn to be called whenever a container returns to Fresh.
func (e *Engine) OnLootReset(fn ResetListener) {
	e.resetListeners = append(e.resetListeners, fn)
}

// Initialized reports whether the catalog has been built.
func (e *Engine) Initialized() bool {
	return e.initialized
}

// Tunables returns the active tunables.
func (e *Engine) Tunables() lootmap.Tunables {
	return e.tunables
}

// Catalog returns the active catalog. Callers must not mutate it.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Initialize schedules catalog construction after the startup grace period.
// The first global spawn pass and the periodic ticks follow it. Nothing
// respawns before the catalog exists. Cancelling ctx before the grace period
// ends abandons initialization.
//
// Postcondition: Returns ErrAlreadyInitialized on a second call.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initializing || e.initialized {
		return ErrAlreadyInitialized
	}
	e.initializing = true
	e.initTask = e.sched.Schedule(func() {
		e.initTask = 0
		if err := ctx.Err(); err != nil {
			e.initializing = false
			e.logger.Info("loot initialization abandoned", zap.Error(err))
			return
		}
		e.bootstrap()
	}, e.cfg.StartupGrace, false)
	e.logger.Info("loot initialization scheduled", zap.Duration("grace", e.cfg.StartupGrace))
	return nil
}

func (e *Engine) liveItems() []rules.Candidate {
	seen := make(map[string]struct{})
	var out []rules.Candidate
	factions := e.items.Factions()
	if len(factions) == 0 {
		e.logger.Error("live item catalog has no factions")
	}
	for _, f := range factions {
		for _, c := range e.items.ItemsByFaction(f) {
			if _, dup := seen[c.ResourceID]; dup {
				continue
			}
			seen[c.ResourceID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) bootstrap() {
	live := e.liveItems()
	for _, c := range live {
		e.modes[c.ResourceID] = c.Mode
	}
	lm := e.store.Bootstrap(live, e.rules, e.items.IsValidResource)
	e.catalog = lm.Catalog
	e.initializing = false
	e.initialized = true
	e.ApplyTunables(lm.Tunables)

	e.logger.Info("loot engine initialized",
		zap.Int("containers", len(e.registered)),
		zap.Int("items", e.catalog.Len()),
		zap.Int("grid_size", e.tunables.GridSize),
	)

	if !e.tunables.IsLootEnabled {
		e.logger.Warn("loot is disabled")
		return
	}
	e.updateProximity()
	if _, err := e.SpawnLoot(); err != nil {
		e.logger.Error("global spawn failed", zap.Error(err))
	}
}

// ApplyTunables replaces the active tunables. A changed grid size rebuilds
// the grid into a new index that replaces the old one in a single step. The
// periodic ticks are rescheduled to match.
//
// Precondition: t must come from lootmap decoding or DefaultTunables.
func (e *Engine) ApplyTunables(t lootmap.Tunables) {
	prev := e.tunables
	e.tunables = t
	if t.GridSize != e.grid.CellSize() {
		e.grid = e.grid.Rebuild(t.GridSize, func(h grid.Handle) grid.Position { return e.registered[h] })
		if e.initialized {
			// Proximity cells are keyed by cell size.
			e.updateProximity()
		}
		e.logger.Info("loot grid rebuilt", zap.Int("grid_size", t.GridSize), zap.Int("cells", e.grid.CellCount()))
	}
	e.respawner = respawn.NewScheduler(e.tracker, respawn.Settings{
		BatchSize: t.RespawnLootProcessorBatchSize,
		Delay:     t.RespawnDelay(),
		Budget:    t.RespawnLootItemThreshold,
	}, e.permitsRefill, e.logger)

	if !e.initialized {
		return
	}
	if e.playerTask == 0 && t.IsLootEnabled {
		e.playerTask = e.sched.Schedule(e.updateProximity, e.cfg.PlayerTick, true)
	}
	if !t.IsLootEnabled && e.playerTask != 0 {
		e.sched.Cancel(e.playerTask)
		e.playerTask = 0
	}
	wantRespawn := t.IsLootEnabled && t.IsRespawnLootEnabled
	if e.respawnTask != 0 && (!wantRespawn || t.RespawnInterval() != prev.RespawnInterval()) {
		e.sched.Cancel(e.respawnTask)
		e.respawnTask = 0
	}
	if wantRespawn && e.respawnTask == 0 {
		e.respawnTask = e.sched.Schedule(e.respawnTick, t.RespawnInterval(), true)
	}
}

// Stop cancels every task the engine has scheduled.
func (e *Engine) Stop() {
	for _, id := range []schedule.TaskID{e.initTask, e.playerTask, e.respawnTask} {
		if id != 0 {
			e.sched.Cancel(id)
		}
	}
	e.initTask, e.playerTask, e.respawnTask = 0, 0, 0
	for h, id := range e.trickles {
		e.sched.Cancel(id)
		delete(e.trickles, h)
	}
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Registered int
	Cells      int
	Tracked    int
	Refilling  int
	Items      int
	Players    int
	DeadCells  int
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Registered: len(e.registered),
		Cells:      e.grid.CellCount(),
		Tracked:    e.tracker.Len(),
		Refilling:  len(e.trickles),
		Items:      e.catalog.Len(),
		Players:    e.proximity.Players(),
		DeadCells:  e.proximity.DeadCells(),
	}
}
