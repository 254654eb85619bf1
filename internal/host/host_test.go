package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
	"github.com/cory-johannsen/loot/internal/host"
)

var (
	_ loot.Container   = (*host.Crate)(nil)
	_ loot.World       = (*host.World)(nil)
	_ loot.Players     = (*host.World)(nil)
	_ loot.ItemCatalog = (*host.Registry)(nil)
	_ loot.Scavenger   = (*host.Scavenger)(nil)
)

const testItems = `
items:
  - id: AK74
    name: AK-74
    factions: [USSR, FIA]
    type: rifle
    mode: weapon
    magazine_ref: Mag545
  - id: Mag545
    name: 5.45 Magazine
    factions: [USSR]
    type: rifle
    mode: ammunition
    capacity: 30
  - id: Bandage
    name: Bandage
    factions: [USSR, US]
    type: medical
    mode: consumable
  - id: Lamp
    name: Lamp
    factions: [US]
    type: equipment
    mode: attachment
    broken: true
`

func testRegistry(t *testing.T) *host.Registry {
	t.Helper()
	defs, err := host.ParseItems([]byte(testItems))
	require.NoError(t, err)
	reg, err := host.NewRegistry(defs)
	require.NoError(t, err)
	return reg
}

func TestContent_Loads(t *testing.T) {
	defs, err := host.LoadItems("../../content/items")
	require.NoError(t, err)
	require.NotEmpty(t, defs)
	reg, err := host.NewRegistry(defs)
	require.NoError(t, err)

	w, err := host.LoadWorldFromFile("../../content/world.yaml", reg)
	require.NoError(t, err)
	assert.NotEmpty(t, w.Crates())
	assert.NotEmpty(t, w.Players())
	assert.NotEmpty(t, w.Scavengers())
}

func TestItemDef_Validate(t *testing.T) {
	cases := map[string]string{
		"missing id":           "items: [{name: X, factions: [US], type: rifle, mode: weapon}]",
		"no factions":          "items: [{id: X, name: X, type: rifle, mode: weapon}]",
		"two categories":       "items: [{id: X, name: X, factions: [US], type: rifle|medical, mode: weapon}]",
		"unknown type":         "items: [{id: X, name: X, factions: [US], type: laser, mode: weapon}]",
		"unknown mode":         "items: [{id: X, name: X, factions: [US], type: rifle, mode: magic}]",
		"ammo without rounds":  "items: [{id: X, name: X, factions: [US], type: rifle, mode: ammunition}]",
		"magazine on non-weap": "items: [{id: X, name: X, factions: [US], type: medical, mode: consumable, magazine_ref: Y}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := host.ParseItems([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	defs, err := host.ParseItems([]byte(testItems))
	require.NoError(t, err)
	_, err = host.NewRegistry(append(defs, defs[0]))
	assert.ErrorContains(t, err, "already registered")

	bad, err := host.ParseItems([]byte("items: [{id: G, name: G, factions: [US], type: rifle, mode: weapon, magazine_ref: Bandage}, {id: Bandage, name: B, factions: [US], type: medical, mode: consumable}]"))
	require.NoError(t, err)
	_, err = host.NewRegistry(bad)
	assert.ErrorContains(t, err, "unknown magazine")
}

func TestRegistry_LiveCatalog(t *testing.T) {
	reg := testRegistry(t)
	assert.Equal(t, []string{"FIA", "US", "USSR"}, reg.Factions())

	ussr := reg.ItemsByFaction("USSR")
	require.Len(t, ussr, 3)
	assert.Equal(t, "AK74", ussr[0].ResourceID)
	assert.Equal(t, catalog.ModeWeapon, ussr[0].Mode)
	assert.True(t, ussr[1].Magazine)
	assert.Equal(t, catalog.TypeRifle, ussr[1].Type)
	assert.Empty(t, reg.ItemsByFaction("NATO"))

	assert.True(t, reg.IsValidResource("Bandage"))
	assert.False(t, reg.IsValidResource("Lamp"), "broken asset")
	assert.False(t, reg.IsValidResource("Ghost"))

	mag, ok := reg.MagazineOf("AK74")
	assert.True(t, ok)
	assert.Equal(t, "Mag545", mag)
	_, ok = reg.MagazineOf("Bandage")
	assert.False(t, ok)
	assert.Equal(t, "5.45 Magazine", reg.NameOf("Mag545"))
	assert.Equal(t, "Ghost", reg.NameOf("Ghost"))
}

func ins(id string, mode catalog.ItemMode) loot.Insertion {
	return loot.Insertion{ResourceID: id, InstanceID: uuid.New(), Mode: mode}
}

func TestCrate_InsertItem(t *testing.T) {
	reg := testRegistry(t)
	c := host.NewCrate("c", grid.Position{}, catalog.TypeRifle, 3, reg)

	mag := ins("Mag545", catalog.ModeAmmunition)
	mag.AmmoPercent = 0.5
	require.True(t, c.InsertItem(mag))

	gun := ins("AK74", catalog.ModeWeapon)
	gun.StripMagazine = true
	require.True(t, c.InsertItem(gun))

	loaded := ins("AK74", catalog.ModeWeapon)
	loaded.WeaponAmmoPercent = 1
	require.True(t, c.InsertItem(loaded))

	assert.False(t, c.InsertItem(ins("Bandage", catalog.ModeConsumable)), "full")
	items := c.Items()
	require.Len(t, items, 3)
	require.NotNil(t, items[0].Magazine)
	assert.Equal(t, 15, items[0].Magazine.Loaded)
	assert.Nil(t, items[1].Magazine, "stripped")
	require.NotNil(t, items[2].Magazine)
	assert.Equal(t, "Mag545", items[2].Magazine.ResourceID)
	assert.Equal(t, 30, items[2].Magazine.Loaded)

	assert.Len(t, c.TakeAll(), 3)
	assert.Zero(t, c.Len())
	assert.False(t, c.InsertItem(ins("Ghost", catalog.ModeConsumable)), "unknown item")
}

func TestNewMagazine_Clamps(t *testing.T) {
	m := host.NewMagazine("m", 50, 30)
	assert.Equal(t, 30, m.Loaded)
	assert.True(t, host.NewMagazine("m", -1, 30).IsEmpty())
	assert.Panics(t, func() { host.NewMagazine("m", 1, 0) })
}

func TestWorld_Load(t *testing.T) {
	reg := testRegistry(t)
	w, err := host.LoadWorldFromBytes([]byte(`
crates:
  - {id: b, position: {x: 10, z: 20}, types: rifle|medical, slots: 4}
  - {id: a, position: {x: -5, z: 0}, types: medical, slots: 2}
players:
  - {name: p1, position: {x: 1, z: 2}}
scavengers:
  - {name: s1, pouch_slots: 3}
`), reg)
	require.NoError(t, err)
	crates := w.Crates()
	require.Len(t, crates, 2)
	assert.Equal(t, grid.Handle("a"), crates[0].ID)
	assert.Equal(t, catalog.TypeRifle|catalog.TypeMedical, crates[1].TypeFlags())
	assert.Equal(t, []grid.Position{{X: 1, Z: 2}}, w.PlayerPositions())

	_, ok := w.Container("a")
	assert.True(t, ok)
	assert.True(t, w.Destroy("a"))
	assert.False(t, w.Destroy("a"))
	_, ok = w.Container("a")
	assert.False(t, ok)
}

func TestWorld_LoadErrors(t *testing.T) {
	reg := testRegistry(t)
	_, err := host.LoadWorldFromBytes([]byte(`
crates:
  - {id: a, types: medical, slots: 2}
  - {id: a, types: medical, slots: 2}
  - {id: b, types: laser, slots: 2}
  - {id: c, types: medical, slots: 0}
players:
  - {name: ""}
`), reg)
	require.Error(t, err)
	for _, want := range []string{"defined twice", "laser", "slots", "player name"} {
		assert.ErrorContains(t, err, want)
	}
	_, err = host.LoadWorldFromFile("/nonexistent/world.yaml", reg)
	assert.Error(t, err)
}

func TestScavenger_Equip(t *testing.T) {
	reg := testRegistry(t)
	w, err := host.LoadWorldFromBytes([]byte("scavengers: [{name: s, pouch_slots: 1}]"), reg)
	require.NoError(t, err)
	s := w.Scavengers()[0]

	assert.True(t, s.EquipWeapon(ins("AK74", catalog.ModeWeapon)))
	assert.False(t, s.EquipWeapon(ins("AK74", catalog.ModeWeapon)), "already armed")
	m := ins("Mag545", catalog.ModeAmmunition)
	m.AmmoPercent = 1
	assert.True(t, s.StoreMagazine(m))
	assert.False(t, s.StoreMagazine(m), "pouch full")
	assert.Equal(t, 30, s.Rounds())
}

func TestProperty_CrateNeverExceedsSlots(t *testing.T) {
	reg := testRegistry(t)
	rapid.Check(t, func(rt *rapid.T) {
		slots := rapid.IntRange(1, 10).Draw(rt, "slots")
		c := host.NewCrate("c", grid.Position{}, catalog.AnyType, slots, reg)
		n := rapid.IntRange(0, 30).Draw(rt, "inserts")
		accepted := 0
		for i := 0; i < n; i++ {
			it := ins("Mag545", catalog.ModeAmmunition)
			it.AmmoPercent = rapid.Float64Range(0.01, 1).Draw(rt, "pct")
			if c.InsertItem(it) {
				accepted++
			}
		}
		if c.Len() > slots || accepted != min(n, slots) {
			rt.Fatalf("slots %d inserts %d accepted %d len %d", slots, n, accepted, c.Len())
		}
		for _, st := range c.Items() {
			if st.Magazine.Loaded < 1 || st.Magazine.Loaded > 30 {
				rt.Fatalf("rounds %d outside [1, 30]", st.Magazine.Loaded)
			}
		}
	})
}

type fakeEngine struct {
	registered  map[grid.Handle]grid.Position
	interacted  []grid.Handle
	initialized bool
	equipped    int
}

func (f *fakeEngine) RegisterContainer(h grid.Handle, pos grid.Position) {
	if f.registered == nil {
		f.registered = map[grid.Handle]grid.Position{}
	}
	f.registered[h] = pos
}

func (f *fakeEngine) MarkInteracted(h grid.Handle) error {
	f.interacted = append(f.interacted, h)
	return nil
}

func (f *fakeEngine) SearchDuration(grid.Handle) time.Duration { return time.Second }

func (f *fakeEngine) EquipScavenger(target loot.Scavenger) (loot.Loadout, error) {
	f.equipped++
	return loot.Loadout{}, nil
}

func (f *fakeEngine) Initialized() bool { return f.initialized }

func simWorld(t *testing.T) *host.World {
	t.Helper()
	w, err := host.LoadWorldFromBytes([]byte(`
crates:
  - {id: near, position: {x: 0, z: 0}, types: medical, slots: 4}
  - {id: far, position: {x: 5000, z: 0}, types: medical, slots: 4}
players:
  - {name: p, position: {x: 0, z: 0}}
scavengers:
  - {name: s, pouch_slots: 2}
`), testRegistry(t))
	require.NoError(t, err)
	return w
}

func TestSim_StepSearchesCratesInReach(t *testing.T) {
	w := simWorld(t)
	eng := &fakeEngine{}
	near, _ := w.Crate("near")
	near.InsertItem(ins("Bandage", catalog.ModeConsumable))

	sim := host.NewSim(w, eng, newRoller(1), host.SimConfig{Tick: time.Second, Step: 0, Reach: 10}, zap.NewNop())
	assert.Equal(t, 2, sim.RegisterAll())
	assert.Len(t, eng.registered, 2)

	assert.Equal(t, 1, sim.Step())
	assert.Equal(t, []grid.Handle{"near"}, eng.interacted)
	assert.Zero(t, near.Len(), "player took the loot")
	assert.Zero(t, eng.equipped, "scavengers wait for initialization")

	eng.initialized = true
	sim.Step()
	sim.Step()
	assert.Equal(t, 1, eng.equipped, "scavengers are equipped once")
}

type postRecorder struct {
	posted chan func()
}

func (p *postRecorder) Post(fn func()) { p.posted <- fn }

func TestSim_RunPostsUntilCancelled(t *testing.T) {
	w := simWorld(t)
	sim := host.NewSim(w, &fakeEngine{}, newRoller(1), host.SimConfig{Tick: 5 * time.Millisecond, Step: 1, Reach: 1}, zap.NewNop())
	rec := &postRecorder{posted: make(chan func(), 64)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, rec) }()

	select {
	case fn := <-rec.posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no step posted")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
