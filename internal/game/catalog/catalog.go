// Package catalog holds the loot item definitions grouped by item category
// and implements weighted selection over them.
package catalog

import (
	"errors"
	"fmt"
)

// ErrDuplicateResource is returned when a resource id is added twice to one bucket.
var ErrDuplicateResource = errors.New("catalog: duplicate resource in bucket")

// ItemConfig is the spawn configuration of one resource.
//
// Invariant: 0 <= ChanceToSpawn <= 100; MaxSpawnCount >= 1.
type ItemConfig struct {
	ResourceID          string  `json:"resourceId"`
	ChanceToSpawn       int     `json:"chanceToSpawn"`
	MaxSpawnCount       int     `json:"maxSpawnCount"`
	DisplayNameOverride *string `json:"displayNameOverride"`
	Enabled             bool    `json:"enabled"`

	// Mode is learned from the live item catalog and never persisted.
	Mode ItemMode `json:"-"`
}

// Validate checks that the config satisfies its invariants.
//
// Postcondition: Returns nil iff all field constraints hold.
func (c ItemConfig) Validate() error {
	if c.ResourceID == "" {
		return errors.New("catalog: item must have a non-empty resource id")
	}
	if c.ChanceToSpawn < 0 || c.ChanceToSpawn > 100 {
		return fmt.Errorf("catalog: item %q chanceToSpawn must be in [0, 100], got %d", c.ResourceID, c.ChanceToSpawn)
	}
	if c.MaxSpawnCount < 1 {
		return fmt.Errorf("catalog: item %q maxSpawnCount must be >= 1, got %d", c.ResourceID, c.MaxSpawnCount)
	}
	return nil
}

// DisplayName returns the override when set, otherwise fallback.
func (c ItemConfig) DisplayName(fallback string) string {
	if c.DisplayNameOverride != nil && *c.DisplayNameOverride != "" {
		return *c.DisplayNameOverride
	}
	return fallback
}

// Catalog maps each item category to an ordered bucket of item configs and
// tracks every resource id ever loaded, enabled or not.
//
// Invariant: no resource id appears twice within one bucket.
// Catalog is not safe for concurrent mutation.
type Catalog struct {
	buckets map[ItemType][]ItemConfig
	known   map[string]struct{}
}

// New returns an empty Catalog.
//
// Postcondition: Len() == 0.
func New() *Catalog {
	return &Catalog{
		buckets: make(map[ItemType][]ItemConfig),
		known:   make(map[string]struct{}),
	}
}

// EnsureBucket creates an empty bucket for t if none exists.
//
// Precondition: t must be exactly one known category.
func (c *Catalog) EnsureBucket(t ItemType) {
	if _, ok := c.buckets[t]; !ok {
		c.buckets[t] = []ItemConfig{}
	}
}

// Add appends cfg to the bucket for t and marks its id as known.
//
// Precondition: t must be exactly one known category.
// Postcondition: Returns ErrDuplicateResource if the bucket already holds cfg.ResourceID.
func (c *Catalog) Add(t ItemType, cfg ItemConfig) error {
	if t.Key() == "" {
		return fmt.Errorf("catalog: Add: %d is not a single item type", uint32(t))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.Contains(t, cfg.ResourceID) {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateResource, cfg.ResourceID, t.Key())
	}
	c.buckets[t] = append(c.buckets[t], cfg)
	c.known[cfg.ResourceID] = struct{}{}
	return nil
}

// Contains reports whether the bucket for t holds id.
func (c *Catalog) Contains(t ItemType, id string) bool {
	for _, it := range c.buckets[t] {
		if it.ResourceID == id {
			return true
		}
	}
	return false
}

// MarkKnown records id as a valid resource without adding it to a bucket.
func (c *Catalog) MarkKnown(id string) {
	c.known[id] = struct{}{}
}

// IsKnownItem reports whether id has been loaded into this catalog at any
// point, regardless of whether it is currently enabled.
func (c *Catalog) IsKnownItem(id string) bool {
	_, ok := c.known[id]
	return ok
}

// KnownCount returns the size of the known id set.
func (c *Catalog) KnownCount() int {
	return len(c.known)
}

// Bucket returns a copy of the configs in t's bucket.
func (c *Catalog) Bucket(t ItemType) []ItemConfig {
	return append([]ItemConfig(nil), c.buckets[t]...)
}

// HasBucket reports whether a bucket exists for t, even an empty one.
func (c *Catalog) HasBucket(t ItemType) bool {
	_, ok := c.buckets[t]
	return ok
}

// Types returns the categories that have a bucket, in canonical order.
func (c *Catalog) Types() []ItemType {
	var out []ItemType
	for _, t := range AllItemTypes {
		if _, ok := c.buckets[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the total number of configs across buckets.
func (c *Catalog) Len() int {
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	return n
}

// Lookup finds the first config for id in canonical category order.
func (c *Catalog) Lookup(id string) (ItemConfig, ItemType, bool) {
	for _, t := range AllItemTypes {
		for _, it := range c.buckets[t] {
			if it.ResourceID == id {
				return it, t, true
			}
		}
	}
	return ItemConfig{}, 0, false
}

// SetMode records the usage mode for every config with the given id.
func (c *Catalog) SetMode(id string, mode ItemMode) {
	for t, bucket := range c.buckets {
		for i := range bucket {
			if bucket[i].ResourceID == id {
				c.buckets[t][i].Mode = mode
			}
		}
	}
}

// PruneDisabled removes disabled configs from every bucket. Their ids stay known.
//
// Postcondition: returns the number of configs removed.
func (c *Catalog) PruneDisabled() int {
	removed := 0
	for t, bucket := range c.buckets {
		kept := bucket[:0]
		for _, it := range bucket {
			if it.Enabled {
				kept = append(kept, it)
				continue
			}
			removed++
		}
		c.buckets[t] = kept
	}
	return removed
}

// FlagHasResource reports whether id is in any bucket selected by flags.
func (c *Catalog) FlagHasResource(flags ItemType, id string) bool {
	if id == "" {
		return false
	}
	for _, t := range flags.Split() {
		if c.Contains(t, id) {
			return true
		}
	}
	return false
}
