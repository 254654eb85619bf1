// Package host is a small simulated game host for the loot server: an item
// registry, a world of crates, players and scavengers, and a wander loop
// that opens crates. It implements the contracts the loot engine consumes.
package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/rules"
)

// ItemDef defines one spawnable item loaded from YAML.
type ItemDef struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Factions []string `yaml:"factions"`
	// Type is the single catalog category key, e.g. "rifle".
	Type string `yaml:"type"`
	// Mode is the usage mode: weapon, ammunition, consumable, attachment.
	Mode string `yaml:"mode"`
	// MagazineRef names the magazine a weapon takes.
	MagazineRef string `yaml:"magazine_ref"`
	// Capacity is the round count of a magazine.
	Capacity   int  `yaml:"capacity"`
	Deployable bool `yaml:"deployable"`
	// Broken marks an item whose asset no longer resolves.
	Broken bool `yaml:"broken"`
}

// itemFile is the top-level YAML structure of an item file.
type itemFile struct {
	Items []*ItemDef `yaml:"items"`
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if len(d.Factions) == 0 {
		errs = append(errs, errors.New("factions must not be empty"))
	}
	if t, err := catalog.ParseItemType(d.Type); err != nil {
		errs = append(errs, err)
	} else if t.Key() == "" {
		errs = append(errs, fmt.Errorf("type must name exactly one category, got %q", d.Type))
	}
	mode, err := catalog.ParseItemMode(d.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode == catalog.ModeAmmunition && d.Capacity < 1 {
		errs = append(errs, errors.New("capacity must be >= 1 for ammunition"))
	}
	if d.MagazineRef != "" && mode != catalog.ModeWeapon {
		errs = append(errs, errors.New("magazine_ref is only valid for weapons"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("item %q validation failed: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

func (d *ItemDef) itemType() catalog.ItemType {
	t, _ := catalog.ParseItemType(d.Type)
	return t
}

func (d *ItemDef) itemMode() catalog.ItemMode {
	m, _ := catalog.ParseItemMode(d.Mode)
	return m
}

func (d *ItemDef) candidate() rules.Candidate {
	mode := d.itemMode()
	return rules.Candidate{
		ResourceID: d.ID,
		Type:       d.itemType(),
		Mode:       mode,
		Magazine:   mode == catalog.ModeAmmunition,
		Deployable: d.Deployable,
	}
}

// LoadItems reads all *.yaml and *.yml files from dir, parses the items
// list of each, validates every item, and returns them in file then list
// order.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var items []*ItemDef
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		defs, err := ParseItems(data)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: %q: %w", path, err)
		}
		items = append(items, defs...)
	}
	return items, nil
}

// ParseItems parses and validates an item file.
func ParseItems(data []byte) ([]*ItemDef, error) {
	var f itemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing items YAML: %w", err)
	}
	for _, d := range f.Items {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Items, nil
}
