package loot_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
	"github.com/cory-johannsen/loot/internal/game/lootmap"
	"github.com/cory-johannsen/loot/internal/game/respawn"
	"github.com/cory-johannsen/loot/internal/game/rules"
)

const both = catalog.TypeRifle | catalog.TypeMedical

func TestInitialize_WaitsForGracePeriod(t *testing.T) {
	h := newHarness(t)
	crate := h.addContainer("crate", grid.Position{X: 150, Z: 250}, both)

	require.NoError(t, h.engine.Initialize(context.Background()))
	_, err := h.engine.SpawnLoot()
	assert.ErrorIs(t, err, loot.ErrNotInitialized)

	h.advance(4 * time.Second)
	assert.False(t, h.engine.Initialized())
	assert.Empty(t, crate.items)

	h.advance(time.Second)
	assert.True(t, h.engine.Initialized())
	assert.NotEmpty(t, crate.items, "global spawn follows catalog construction")
	_, err = os.Stat(h.store.Path())
	assert.NoError(t, err, "loot map written during bootstrap")
}

func TestInitialize_Twice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Initialize(context.Background()))
	assert.ErrorIs(t, h.engine.Initialize(context.Background()), loot.ErrAlreadyInitialized)
	h.advance(time.Minute)
	assert.ErrorIs(t, h.engine.Initialize(context.Background()), loot.ErrAlreadyInitialized)
}

func TestInitialize_CancelledContextAbandons(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.engine.Initialize(ctx))
	cancel()
	h.advance(time.Minute)
	assert.False(t, h.engine.Initialized())
	assert.Zero(t, h.queue.Len(), "no ticks scheduled")
	assert.NoError(t, h.engine.Initialize(context.Background()), "initialization may be retried")
}

func TestInitialize_ReservedItemsPrunedButKnown(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	cat := h.engine.Catalog()
	_, _, found := cat.Lookup("US_MedicalKit")
	assert.False(t, found)
	assert.True(t, cat.IsKnownItem("US_MedicalKit"))
	mag, _, found := cat.Lookup("Mag545")
	require.True(t, found)
	assert.Equal(t, 4, mag.MaxSpawnCount)
	assert.Equal(t, catalog.ModeAmmunition, mag.Mode)
}

func TestInitialize_RebuildsGridWithLoadedCellSize(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	lm.Tunables.GridSize = 50
	h.saveLootMap(t, lm)

	h.addContainer("a", grid.Position{X: 10, Z: 10}, both)
	h.addContainer("b", grid.Position{X: 60, Z: 10}, both)
	assert.Equal(t, 1, h.engine.Stats().Cells, "same 100-unit cell before init")

	h.initialize(t)
	assert.Equal(t, 2, h.engine.Stats().Cells)
	assert.Equal(t, 2, h.engine.Stats().Registered)
}

func TestRegisterContainer_MoveAndUnregister(t *testing.T) {
	h := newHarness(t)
	h.addContainer("a", grid.Position{X: 10}, both)
	h.engine.RegisterContainer("a", grid.Position{X: 510})
	assert.Equal(t, 1, h.engine.Stats().Cells)
	assert.Equal(t, 1, h.engine.Stats().Registered)

	h.engine.UnregisterContainer("a")
	h.engine.UnregisterContainer("a")
	assert.Zero(t, h.engine.Stats().Cells)
	assert.False(t, h.engine.IsRegistered("a"))
}

func TestMarkInteracted_UnknownContainer(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.MarkInteracted("ghost"), loot.ErrUnknownContainer)
}

func TestSpawnLoot_DrawBounds(t *testing.T) {
	h := newHarness(t)
	var crates []*fakeContainer
	for i := 0; i < 30; i++ {
		crates = append(crates, h.addContainer(grid.Handle(rune('a'+i)), grid.Position{X: float64(i * 100)}, both))
	}
	h.initialize(t)

	for _, c := range crates {
		distinct := map[string]int{}
		for _, it := range c.items {
			distinct[it.ResourceID]++
		}
		assert.NotEmpty(t, distinct)
		assert.LessOrEqual(t, len(distinct), 6)
		for id, n := range distinct {
			cfg, _, ok := h.engine.Catalog().Lookup(id)
			require.True(t, ok)
			assert.LessOrEqual(t, n, cfg.MaxSpawnCount, id)
		}
	}
}

func TestSpawnLoot_LootDisabled(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	lm.Tunables.IsLootEnabled = false
	h.saveLootMap(t, lm)
	crate := h.addContainer("crate", grid.Position{}, both)

	h.initialize(t)
	assert.Empty(t, crate.items)
	assert.Zero(t, h.queue.Len(), "no periodic ticks when loot is disabled")
	n, err := h.engine.SpawnLoot()
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpawnLoot_RespawnDisabledSchedulesOnlyPlayerTick(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	lm.Tunables.IsRespawnLootEnabled = false
	h.saveLootMap(t, lm)
	h.initialize(t)
	assert.Equal(t, 1, h.queue.Len())
}

func TestSpawnLoot_SkipsDeadZoneAndVanished(t *testing.T) {
	h := newHarness(t)
	near := h.addContainer("near", grid.Position{X: 150, Z: 250}, both)
	far := h.addContainer("far", grid.Position{X: 2150, Z: 250}, both)
	h.addContainer("gone", grid.Position{X: 4000}, both)
	delete(h.world.containers, "gone")
	h.players.positions = []grid.Position{{X: 160, Z: 240}}

	h.initialize(t)
	assert.Empty(t, near.items)
	assert.NotEmpty(t, far.items)
}

func TestSpawnLoot_InsertionRetriedOnce(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	require.NoError(t, lm.Catalog.Add(catalog.TypeMedical, catalog.ItemConfig{ResourceID: "Bandage", ChanceToSpawn: 100, MaxSpawnCount: 1, Enabled: true}))
	h.saveLootMap(t, lm)
	h.items.byFaction = map[string][]rules.Candidate{
		"US": {{ResourceID: "Bandage", Type: catalog.TypeMedical, Mode: catalog.ModeConsumable}},
	}
	crate := h.addContainer("crate", grid.Position{}, catalog.TypeMedical)
	crate.reject = 1

	h.initialize(t)
	require.Len(t, crate.items, 1, "the single draw lands on the retry")

	stubborn := h.addContainer("stubborn", grid.Position{X: 900}, catalog.TypeMedical)
	stubborn.reject = 2
	n, err := h.engine.SpawnLoot()
	require.NoError(t, err)
	assert.Empty(t, stubborn.items, "abandoned after one retry")
	assert.GreaterOrEqual(t, n, 1)
}

func TestSpawnItem_Errors(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrNotInitialized)

	crate := h.addContainer("crate", grid.Position{X: 150, Z: 250}, both)
	h.initialize(t)

	assert.ErrorIs(t, h.engine.SpawnItem("ghost", "Bandage"), loot.ErrUnknownContainer)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Railgun"), loot.ErrUnknownItem)

	crate.capacity = len(crate.items)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrInsertRejected)

	h.players.positions = []grid.Position{{X: 150, Z: 250}}
	h.advance(h.cfg.PlayerTick)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrDeadZone)

	delete(h.world.containers, "crate")
	h.players.positions = nil
	h.advance(h.cfg.PlayerTick)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrUnknownContainer)
	assert.False(t, h.engine.IsRegistered("crate"), "vanished containers are unregistered")
}

func TestSpawnItem_DisabledButKnownItem(t *testing.T) {
	h := newHarness(t)
	crate := h.addContainer("crate", grid.Position{}, both)
	h.initialize(t)
	before := len(crate.items)
	require.NoError(t, h.engine.SpawnItem("crate", "US_MedicalKit"))
	require.Len(t, crate.items, before+1)
	assert.Equal(t, catalog.ModeConsumable, crate.items[before].Mode)

	last := h.sink.events[len(h.sink.events)-1]
	assert.Equal(t, loot.ReasonManual, last.Reason)
	assert.Equal(t, grid.Handle("crate"), last.Container)
	assert.Equal(t, crate.items[before].InstanceID, last.InstanceID)
}

func TestInsertion_AmmoRolledPerItem(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	lm.Tunables.MagazineMinAmmoPercent = 50
	lm.Tunables.MagazineMaxAmmoPercent = 80
	lm.Tunables.ShouldSpawnMagazine = false
	h.saveLootMap(t, lm)
	crate := h.addContainer("crate", grid.Position{}, both)
	crate.capacity = 1000
	h.initialize(t)

	for i := 0; i < 40; i++ {
		require.NoError(t, h.engine.SpawnItem("crate", "Mag545"))
		require.NoError(t, h.engine.SpawnItem("crate", "AK74"))
	}
	percents := map[float64]bool{}
	for _, it := range crate.items {
		switch it.Mode {
		case catalog.ModeAmmunition:
			assert.GreaterOrEqual(t, it.AmmoPercent, 50.0/80)
			assert.LessOrEqual(t, it.AmmoPercent, 1.0)
			percents[it.AmmoPercent] = true
		case catalog.ModeWeapon:
			assert.False(t, it.StripMagazine)
			assert.GreaterOrEqual(t, it.WeaponAmmoPercent, 0.0)
			assert.LessOrEqual(t, it.WeaponAmmoPercent, 1.0)
		}
	}
	assert.Greater(t, len(percents), 1, "fill is rolled per item, not precomputed")
}

func TestInsertion_WeaponMagazineStripped(t *testing.T) {
	h := newHarness(t)
	crate := h.addContainer("crate", grid.Position{}, both)
	h.initialize(t)
	require.NoError(t, h.engine.SpawnItem("crate", "M16"))
	got := crate.items[len(crate.items)-1]
	assert.True(t, got.StripMagazine)
	assert.Zero(t, got.WeaponRounds(30))
}

func TestInsertion_Rounds(t *testing.T) {
	assert.Equal(t, 24, loot.Insertion{AmmoPercent: 0.8}.Rounds(30))
	assert.Equal(t, 1, loot.Insertion{AmmoPercent: 0.001}.Rounds(30), "at least one round")
	assert.Equal(t, 30, loot.Insertion{AmmoPercent: 1.5}.Rounds(30))
	assert.Zero(t, loot.Insertion{AmmoPercent: 1}.Rounds(0))
	assert.Equal(t, 15, loot.Insertion{WeaponAmmoPercent: 0.5}.WeaponRounds(30))
	assert.Zero(t, loot.Insertion{WeaponAmmoPercent: 0}.WeaponRounds(30))
}

func TestSearchDuration(t *testing.T) {
	h := newHarness(t)
	h.addContainer("crate", grid.Position{}, both)
	h.initialize(t)
	assert.Equal(t, 2*time.Second, h.engine.SearchDuration("crate"))
	require.NoError(t, h.engine.MarkInteracted("crate"))
	assert.Equal(t, 500*time.Millisecond, h.engine.SearchDuration("crate"))
}

type fakeScavenger struct {
	weapon     *loot.Insertion
	magazines  []loot.Insertion
	refuseGun  bool
	pouchSlots int
}

func (s *fakeScavenger) EquipWeapon(ins loot.Insertion) bool {
	if s.refuseGun {
		return false
	}
	s.weapon = &ins
	return true
}

func (s *fakeScavenger) StoreMagazine(ins loot.Insertion) bool {
	if len(s.magazines) >= s.pouchSlots {
		return false
	}
	s.magazines = append(s.magazines, ins)
	return true
}

func TestEquipScavenger(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.EquipScavenger(&fakeScavenger{})
	assert.ErrorIs(t, err, loot.ErrNotInitialized)

	lm := lootmap.Fresh()
	lm.Tunables.ScavengerLoadout = lootmap.ScavengerLoadout{IsEnabled: true, MinMagazines: 2, MaxMagazines: 3}
	h.saveLootMap(t, lm)
	h.initialize(t)

	for i := 0; i < 20; i++ {
		s := &fakeScavenger{pouchSlots: 10}
		got, err := h.engine.EquipScavenger(s)
		require.NoError(t, err)
		require.NotNil(t, s.weapon)
		assert.Equal(t, got.Weapon, s.weapon.ResourceID)
		assert.Contains(t, []string{"M16", "AK74"}, got.Weapon)
		assert.GreaterOrEqual(t, got.Magazines, 2)
		assert.LessOrEqual(t, got.Magazines, 3)
		for _, m := range s.magazines {
			assert.Equal(t, got.Magazine, m.ResourceID)
			assert.Equal(t, catalog.ModeAmmunition, m.Mode)
		}
	}

	full := &fakeScavenger{pouchSlots: 1}
	got, err := h.engine.EquipScavenger(full)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Magazines, "stops when storage is full")

	got, err = h.engine.EquipScavenger(&fakeScavenger{refuseGun: true})
	require.NoError(t, err)
	assert.Equal(t, loot.Loadout{}, got)
}

func TestEquipScavenger_Disabled(t *testing.T) {
	h := newHarness(t)
	lm := lootmap.Fresh()
	lm.Tunables.ScavengerLoadout.IsEnabled = false
	h.saveLootMap(t, lm)
	h.initialize(t)
	s := &fakeScavenger{pouchSlots: 5}
	got, err := h.engine.EquipScavenger(s)
	require.NoError(t, err)
	assert.Equal(t, loot.Loadout{}, got)
	assert.Nil(t, s.weapon)
}

func TestApplyTunables_RebuildReplacesGrid(t *testing.T) {
	h := newHarness(t)
	h.addContainer("a", grid.Position{X: 10}, both)
	h.addContainer("b", grid.Position{X: 160}, both)
	h.initialize(t)
	require.Equal(t, 2, h.engine.Stats().Cells)

	tun := h.engine.Tunables()
	tun.GridSize = 1000
	h.engine.ApplyTunables(tun)
	assert.Equal(t, 1, h.engine.Stats().Cells)
	assert.Equal(t, 2, h.engine.Stats().Registered)

	h.engine.UnregisterContainer("a")
	h.engine.UnregisterContainer("b")
	assert.Zero(t, h.engine.Stats().Cells, "removal after rebuild uses the registration position")
}

func TestApplyTunables_RebuildRefreshesDeadZone(t *testing.T) {
	h := newHarness(t)
	h.addContainer("crate", grid.Position{X: 150, Z: 250}, both)
	h.players.positions = []grid.Position{{X: 150, Z: 250}}
	h.initialize(t)
	h.advance(h.cfg.PlayerTick)
	require.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrDeadZone)

	tun := h.engine.Tunables()
	tun.GridSize = 1000
	h.engine.ApplyTunables(tun)
	assert.ErrorIs(t, h.engine.SpawnItem("crate", "Bandage"), loot.ErrDeadZone, "dead zone follows the new cell size immediately")
}

func TestStop_CancelsEverything(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	require.Positive(t, h.queue.Len())
	h.engine.Stop()
	assert.Zero(t, h.queue.Len())
}

// No placement ever targets a cell inside a player's dead zone.
func TestProperty_NoPlacementInDeadZone(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarnessIn(dir, rapid.Uint64().Draw(rt, "seed"), zap.NewNop())
		for i := rapid.IntRange(1, 12).Draw(rt, "containers"); i > 0; i-- {
			pos := grid.Position{
				X: rapid.Float64Range(-800, 800).Draw(rt, "cx"),
				Z: rapid.Float64Range(-800, 800).Draw(rt, "cz"),
			}
			h.addContainer(grid.Handle(rapid.StringMatching(`c[0-9]{3}`).Draw(rt, "id")), pos, both)
		}
		for i := rapid.IntRange(0, 3).Draw(rt, "players"); i > 0; i-- {
			h.players.positions = append(h.players.positions, grid.Position{
				X: rapid.Float64Range(-800, 800).Draw(rt, "px"),
				Z: rapid.Float64Range(-800, 800).Draw(rt, "pz"),
			})
		}
		if err := h.engine.Initialize(context.Background()); err != nil {
			rt.Fatalf("initialize: %v", err)
		}
		h.advance(h.cfg.StartupGrace)

		for c := range h.world.containers {
			_ = h.engine.MarkInteracted(c)
			_ = h.engine.SpawnItem(c, "Bandage")
		}
		h.advance(5 * time.Minute)

		tun := h.engine.Tunables()
		dead := respawn.ComputeProximity(h.players.positions, tun.GridSize, tun.DeadZoneGridRadius, tun.RespawnLootRadius)
		for _, ev := range h.sink.events {
			if dead.InDeadZone(ev.Cell) {
				rt.Fatalf("%s placed %s inside dead zone cell %s", ev.Reason, ev.ResourceID, ev.Cell)
			}
		}
	})
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{loot.ErrNotInitialized, loot.ErrAlreadyInitialized, loot.ErrUnknownContainer, loot.ErrUnknownItem, loot.ErrDeadZone, loot.ErrInsertRejected}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
