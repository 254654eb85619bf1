package lootmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/cory-johannsen/loot/internal/game/catalog"
)

// ErrCorruptLootMap is returned when the loot map is not a JSON object.
var ErrCorruptLootMap = errors.New("lootmap: document is not a JSON object")

// LootMap is the decoded content of a loot map document.
type LootMap struct {
	Tunables Tunables
	Catalog  *catalog.Catalog
}

// Fresh returns a LootMap holding default tunables and an empty catalog.
func Fresh() *LootMap {
	return &LootMap{Tunables: DefaultTunables(), Catalog: catalog.New()}
}

// IssueKind classifies a recoverable decode problem.
type IssueKind int

const (
	// IssueTunable means a tunable key was missing or invalid and defaulted.
	IssueTunable IssueKind = iota
	// IssueSection means a whole category section was unreadable.
	IssueSection
	// IssueEntry means a single item entry was skipped.
	IssueEntry
)

// Issue describes one recoverable decode problem.
type Issue struct {
	Kind    IssueKind
	Key     string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Key, i.Message)
}

// ResourceValidator reports whether a resource id resolves to a real asset.
type ResourceValidator func(id string) bool

// Decode parses a loot map document. Every problem short of a document that
// is not a JSON object is reported as an Issue and recovered from.
//
// Postcondition: on nil error the LootMap has a bucket for every category,
// and every config in it is valid and accepted by valid (nil accepts all).
func Decode(data []byte, valid ResourceValidator) (*LootMap, []Issue, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, ErrCorruptLootMap
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, nil, ErrCorruptLootMap
	}

	d := decoder{doc: doc}
	lm := &LootMap{Tunables: d.tunables(), Catalog: catalog.New()}
	for _, t := range catalog.AllItemTypes {
		d.section(lm.Catalog, t, valid)
	}
	return lm, d.issues, nil
}

type decoder struct {
	doc    gjson.Result
	issues []Issue
}

func (d *decoder) report(kind IssueKind, key, format string, args ...any) {
	d.issues = append(d.issues, Issue{Kind: kind, Key: key, Message: fmt.Sprintf(format, args...)})
}

func (d *decoder) intKey(key string, def int, ok func(int) bool) int {
	r := d.doc.Get(key)
	if !r.Exists() {
		d.report(IssueTunable, key, "missing, using default %d", def)
		return def
	}
	if r.Type != gjson.Number || r.Num != math.Trunc(r.Num) || !ok(int(r.Num)) {
		d.report(IssueTunable, key, "invalid value %s, using default %d", r.Raw, def)
		return def
	}
	return int(r.Num)
}

func (d *decoder) boolKey(key string, def bool) bool {
	r := d.doc.Get(key)
	if !r.Exists() {
		d.report(IssueTunable, key, "missing, using default %t", def)
		return def
	}
	if r.Type != gjson.True && r.Type != gjson.False {
		d.report(IssueTunable, key, "invalid value %s, using default %t", r.Raw, def)
		return def
	}
	return r.Bool()
}

func (d *decoder) ratioKey(key string, def float64) float64 {
	r := d.doc.Get(key)
	if !r.Exists() {
		d.report(IssueTunable, key, "missing, using default %g", def)
		return def
	}
	if r.Type != gjson.Number || r.Num <= 0 {
		d.report(IssueTunable, key, "invalid value %s, using default %g", r.Raw, def)
		return def
	}
	return r.Num
}

func atLeast(n int) func(int) bool {
	return func(v int) bool { return v >= n }
}

func percent(v int) bool { return v >= 0 && v <= 100 }

func (d *decoder) tunables() Tunables {
	def := DefaultTunables()
	t := Tunables{
		MagazineMinAmmoPercent:               d.intKey(KeyMagazineMinAmmoPercent, def.MagazineMinAmmoPercent, percent),
		MagazineMaxAmmoPercent:               d.intKey(KeyMagazineMaxAmmoPercent, def.MagazineMaxAmmoPercent, func(v int) bool { return v >= 1 && v <= 100 }),
		ShouldSpawnMagazine:                  d.boolKey(KeyShouldSpawnMagazine, def.ShouldSpawnMagazine),
		IsLootEnabled:                        d.boolKey(KeyIsLootEnabled, def.IsLootEnabled),
		IsRespawnLootEnabled:                 d.boolKey(KeyIsRespawnLootEnabled, def.IsRespawnLootEnabled),
		GridSize:                             d.intKey(KeyGridSize, def.GridSize, atLeast(1)),
		DeadZoneGridRadius:                   d.intKey(KeyDeadZoneGridRadius, def.DeadZoneGridRadius, atLeast(0)),
		RespawnLootTimerInSeconds:            d.intKey(KeyRespawnLootTimerInSeconds, def.RespawnLootTimerInSeconds, atLeast(1)),
		RespawnAfterLastInteractionInMinutes: d.intKey(KeyRespawnAfterLastInteractionInMinutes, def.RespawnAfterLastInteractionInMinutes, atLeast(0)),
		RespawnLootItemThreshold:             d.intKey(KeyRespawnLootItemThreshold, def.RespawnLootItemThreshold, atLeast(1)),
		RespawnLootRadius:                    d.intKey(KeyRespawnLootRadius, def.RespawnLootRadius, atLeast(0)),
		UnsearchedTimeRatio:                  d.ratioKey(KeyUnsearchedTimeRatio, def.UnsearchedTimeRatio),
		SearchedTimeRatio:                    d.ratioKey(KeySearchedTimeRatio, def.SearchedTimeRatio),
		RespawnLootProcessorBatchSize:        d.intKey(KeyRespawnLootProcessorBatchSize, def.RespawnLootProcessorBatchSize, atLeast(1)),
		ScavengerLoadout: ScavengerLoadout{
			IsEnabled:    d.boolKey(KeyScavengerLoadout+".isEnabled", def.ScavengerLoadout.IsEnabled),
			MinMagazines: d.intKey(KeyScavengerLoadout+".minMagazines", def.ScavengerLoadout.MinMagazines, atLeast(0)),
			MaxMagazines: d.intKey(KeyScavengerLoadout+".maxMagazines", def.ScavengerLoadout.MaxMagazines, atLeast(0)),
		},
	}
	if t.MagazineMinAmmoPercent > t.MagazineMaxAmmoPercent {
		d.report(IssueTunable, KeyMagazineMinAmmoPercent, "min %d exceeds max %d, using defaults",
			t.MagazineMinAmmoPercent, t.MagazineMaxAmmoPercent)
		t.MagazineMinAmmoPercent = def.MagazineMinAmmoPercent
		t.MagazineMaxAmmoPercent = def.MagazineMaxAmmoPercent
	}
	if t.ScavengerLoadout.MinMagazines > t.ScavengerLoadout.MaxMagazines {
		d.report(IssueTunable, KeyScavengerLoadout, "minMagazines %d exceeds maxMagazines %d, using defaults",
			t.ScavengerLoadout.MinMagazines, t.ScavengerLoadout.MaxMagazines)
		t.ScavengerLoadout.MinMagazines = def.ScavengerLoadout.MinMagazines
		t.ScavengerLoadout.MaxMagazines = def.ScavengerLoadout.MaxMagazines
	}
	return t
}

// section loads one category. The bucket always exists afterwards, empty
// when the section is absent or unreadable. Disabled entries are kept so a
// later Encode does not lose them.
func (d *decoder) section(c *catalog.Catalog, t catalog.ItemType, valid ResourceValidator) {
	key := t.Key()
	c.EnsureBucket(t)
	r := d.doc.Get(key)
	if !r.Exists() {
		return
	}
	if !r.IsArray() {
		d.report(IssueSection, key, "expected an array, got %s", r.Type)
		return
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(r.Raw), &raw); err != nil {
		d.report(IssueSection, key, "unreadable: %v", err)
		return
	}
	// Entries are staged so one malformed entry drops the whole section.
	staged := make([]catalog.ItemConfig, 0, len(raw))
	for i, entry := range raw {
		cfg := catalog.ItemConfig{ChanceToSpawn: 25, MaxSpawnCount: 1, Enabled: true}
		if err := json.Unmarshal(entry, &cfg); err != nil {
			d.report(IssueSection, key, "entry %d unreadable: %v", i, err)
			return
		}
		staged = append(staged, cfg)
	}

	for _, cfg := range staged {
		if err := cfg.Validate(); err != nil {
			d.report(IssueEntry, key, "%v", err)
			continue
		}
		if valid != nil && !valid(cfg.ResourceID) {
			d.report(IssueEntry, key, "resource %q is invalid", cfg.ResourceID)
			continue
		}
		if err := c.Add(t, cfg); err != nil {
			d.report(IssueEntry, key, "%v", err)
		}
	}
}

// Encode renders lm as an indented document. Tunables come first in a fixed
// order, followed by one array per category bucket in canonical order.
func Encode(lm *LootMap) ([]byte, error) {
	t := lm.Tunables
	out := []byte("{}")
	var err error
	set := func(key string, v any) {
		if err == nil {
			out, err = sjson.SetBytes(out, key, v)
		}
	}
	set(KeyMagazineMinAmmoPercent, t.MagazineMinAmmoPercent)
	set(KeyMagazineMaxAmmoPercent, t.MagazineMaxAmmoPercent)
	set(KeyShouldSpawnMagazine, t.ShouldSpawnMagazine)
	set(KeyIsLootEnabled, t.IsLootEnabled)
	set(KeyIsRespawnLootEnabled, t.IsRespawnLootEnabled)
	set(KeyGridSize, t.GridSize)
	set(KeyDeadZoneGridRadius, t.DeadZoneGridRadius)
	set(KeyRespawnLootTimerInSeconds, t.RespawnLootTimerInSeconds)
	set(KeyRespawnAfterLastInteractionInMinutes, t.RespawnAfterLastInteractionInMinutes)
	set(KeyRespawnLootItemThreshold, t.RespawnLootItemThreshold)
	set(KeyRespawnLootRadius, t.RespawnLootRadius)
	set(KeyUnsearchedTimeRatio, t.UnsearchedTimeRatio)
	set(KeySearchedTimeRatio, t.SearchedTimeRatio)
	set(KeyRespawnLootProcessorBatchSize, t.RespawnLootProcessorBatchSize)
	if err != nil {
		return nil, fmt.Errorf("lootmap: encoding tunables: %w", err)
	}

	loadout, err := json.Marshal(t.ScavengerLoadout)
	if err != nil {
		return nil, fmt.Errorf("lootmap: encoding %s: %w", KeyScavengerLoadout, err)
	}
	if out, err = sjson.SetRawBytes(out, KeyScavengerLoadout, loadout); err != nil {
		return nil, fmt.Errorf("lootmap: encoding %s: %w", KeyScavengerLoadout, err)
	}

	for _, typ := range lm.Catalog.Types() {
		items := lm.Catalog.Bucket(typ)
		if items == nil {
			items = []catalog.ItemConfig{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("lootmap: encoding %s: %w", typ.Key(), err)
		}
		if out, err = sjson.SetRawBytes(out, typ.Key(), raw); err != nil {
			return nil, fmt.Errorf("lootmap: encoding %s: %w", typ.Key(), err)
		}
	}

	return pretty.PrettyOptions(out, &pretty.Options{Width: 100, Indent: "  "}), nil
}
