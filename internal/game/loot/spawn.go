package loot

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
)

// spawnDraws bounds the distinct items drawn per container in the global pass.
var spawnDraws = dice.Range{Min: 1, Max: 6}

// SpawnLoot fills every registered container outside the dead zone. Each
// draws 1..6 distinct items from its weighted pool and receives
// 1..maxSpawnCount copies of each.
//
// Postcondition: Returns the number of items placed, or ErrNotInitialized.
func (e *Engine) SpawnLoot() (int, error) {
	if !e.initialized {
		return 0, ErrNotInitialized
	}
	if !e.tunables.IsLootEnabled {
		e.logger.Warn("loot is disabled, skipping spawn")
		return 0, nil
	}
	handles := e.grid.GetAll()
	placed, missing, suppressed := 0, 0, 0
	for _, h := range handles {
		c, ok := e.world.Container(h)
		if !ok {
			missing++
			continue
		}
		if e.proximity.InDeadZone(e.cellOf(h)) {
			suppressed++
			continue
		}
		placed += e.fill(h, c)
	}
	if missing > 0 {
		e.logger.Error("registered containers no longer resolve", zap.Int("count", missing))
	}
	e.logger.Info("global loot spawn",
		zap.Int("containers", len(handles)),
		zap.Int("placed", placed),
		zap.Int("suppressed", suppressed),
	)
	return placed, nil
}

func (e *Engine) fill(h grid.Handle, c Container) int {
	pool := e.catalog.BuildWeightedPool(c.TypeFlags())
	if pool.Len() == 0 {
		return 0
	}
	placed := 0
	for _, cfg := range pool.PickDistinct(e.roller, e.roller.Roll("spawn_draws", spawnDraws)) {
		copies := e.roller.Roll("spawn_copies", dice.Range{Min: 1, Max: cfg.MaxSpawnCount})
		placed += e.insertWithRetry(h, c, cfg, copies, ReasonGlobal)
	}
	return placed
}

// insertWithRetry inserts copies of cfg. When storage rejects an item the
// remaining copies are attempted once more before the draw is abandoned.
func (e *Engine) insertWithRetry(h grid.Handle, c Container, cfg catalog.ItemConfig, copies int, reason Reason) int {
	placed := e.insert(h, c, cfg, copies, reason)
	if placed < copies {
		placed += e.insert(h, c, cfg, copies-placed, reason)
	}
	if placed < copies {
		e.logger.Debug("insertion abandoned",
			zap.String("container", string(h)),
			zap.String("resource_id", cfg.ResourceID),
			zap.Int("placed", placed),
			zap.Int("wanted", copies),
		)
	}
	return placed
}

func (e *Engine) insert(h grid.Handle, c Container, cfg catalog.ItemConfig, n int, reason Reason) int {
	placed := 0
	for ; placed < n; placed++ {
		ins := e.rollInsertion(cfg.ResourceID, e.modeOf(cfg))
		if !c.InsertItem(ins) {
			break
		}
		e.record(h, ins, reason)
	}
	return placed
}

func (e *Engine) modeOf(cfg catalog.ItemConfig) catalog.ItemMode {
	if cfg.Mode != catalog.ModeDefault {
		return cfg.Mode
	}
	return e.modes[cfg.ResourceID]
}

// rollInsertion rolls the per-instance ammunition state of one item.
func (e *Engine) rollInsertion(id string, mode catalog.ItemMode) Insertion {
	ins := Insertion{ResourceID: id, InstanceID: uuid.New(), Mode: mode}
	switch mode {
	case catalog.ModeAmmunition:
		rng := e.tunables.AmmoRange()
		ins.AmmoPercent = float64(e.roller.Roll("ammo_percent", rng)) / float64(rng.Max)
	case catalog.ModeWeapon:
		ins.StripMagazine = e.tunables.ShouldSpawnMagazine
		if !ins.StripMagazine {
			ins.WeaponAmmoPercent = float64(e.roller.Roll("weapon_ammo_percent", dice.Range{Min: 0, Max: 100})) / 100
		}
	}
	return ins
}

func (e *Engine) record(h grid.Handle, ins Insertion, reason Reason) {
	if e.sink == nil {
		return
	}
	ev := SpawnEvent{
		Time:       e.sched.Now(),
		Reason:     reason,
		Container:  h,
		ResourceID: ins.ResourceID,
		InstanceID: ins.InstanceID,
	}
	if h != "" {
		ev.Cell = e.cellOf(h)
	}
	e.sink.Record(ev)
}

func (e *Engine) cellOf(h grid.Handle) grid.Cell {
	return e.grid.CellOf(e.registered[h])
}

// SpawnItem places one copy of resourceID in h on behalf of interaction or
// UI code. Disabled items that the catalog knows may be placed.
//
// Postcondition: Returns nil once the item is stored, ErrNotInitialized,
// ErrUnknownContainer, ErrUnknownItem, ErrDeadZone or ErrInsertRejected.
func (e *Engine) SpawnItem(h grid.Handle, resourceID string) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if !e.IsRegistered(h) {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, h)
	}
	if !e.catalog.IsKnownItem(resourceID) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, resourceID)
	}
	if e.proximity.InDeadZone(e.cellOf(h)) {
		return fmt.Errorf("%w: %s", ErrDeadZone, h)
	}
	c, ok := e.world.Container(h)
	if !ok {
		e.UnregisterContainer(h)
		return fmt.Errorf("%w: %s no longer exists", ErrUnknownContainer, h)
	}
	cfg, _, found := e.catalog.Lookup(resourceID)
	if !found {
		cfg = catalog.ItemConfig{ResourceID: resourceID, MaxSpawnCount: 1}
	}
	if e.insertWithRetry(h, c, cfg, 1, ReasonManual) == 0 {
		return fmt.Errorf("%w: %s into %s", ErrInsertRejected, resourceID, h)
	}
	return nil
}

// Loadout is what EquipScavenger handed out.
type Loadout struct {
	Weapon     string
	Magazine   string
	Magazines  int
	WeaponOnly bool
}

// EquipScavenger gives target a weapon drawn by chanceToSpawn across the
// weapon categories plus a rolled number of its magazines. A disabled
// loadout or an empty weapon pool yields a zero Loadout and no error.
//
// Postcondition: Returns ErrNotInitialized before the catalog is built.
func (e *Engine) EquipScavenger(target Scavenger) (Loadout, error) {
	if !e.initialized {
		return Loadout{}, ErrNotInitialized
	}
	settings := e.tunables.ScavengerLoadout
	if !settings.IsEnabled {
		return Loadout{}, nil
	}
	weapon, ok := e.catalog.Weapons().Pick(e.roller)
	if !ok {
		e.logger.Warn("no weapons available for scavenger loadout")
		return Loadout{}, nil
	}
	ins := e.rollInsertion(weapon.ResourceID, catalog.ModeWeapon)
	if !target.EquipWeapon(ins) {
		e.logger.Warn("scavenger rejected weapon", zap.String("resource_id", weapon.ResourceID))
		return Loadout{}, nil
	}
	e.record("", ins, ReasonScavenger)
	out := Loadout{Weapon: weapon.ResourceID}

	magID, ok := e.items.MagazineOf(weapon.ResourceID)
	if !ok {
		out.WeaponOnly = true
		return out, nil
	}
	out.Magazine = magID
	want := e.roller.Roll("scavenger_magazines", e.tunables.MagazineRange())
	for i := 0; i < want; i++ {
		mag := e.rollInsertion(magID, catalog.ModeAmmunition)
		if !target.StoreMagazine(mag) {
			break
		}
		e.record("", mag, ReasonScavenger)
		out.Magazines++
	}
	return out, nil
}
