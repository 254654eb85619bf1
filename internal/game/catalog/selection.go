package catalog

import "github.com/cory-johannsen/loot/internal/game/dice"

// PickOneByFlags chooses one bucket uniformly among the categories set in
// flags that have a bucket, then one config from that bucket weighted by
// ChanceToSpawn. Landing on an empty bucket or a disabled config yields no
// selection; the draw is never retried.
//
// Postcondition: a returned config belongs to a bucket whose bit is set in
// flags and is enabled. ok is false on any lookup miss.
func (c *Catalog) PickOneByFlags(flags ItemType, src dice.Source) (ItemConfig, bool) {
	if flags == 0 {
		return ItemConfig{}, false
	}
	var candidates []ItemType
	for _, t := range flags.Split() {
		if _, ok := c.buckets[t]; ok {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return ItemConfig{}, false
	}
	bucket := c.buckets[candidates[src.Intn(len(candidates))]]
	if len(bucket) == 0 {
		return ItemConfig{}, false
	}

	weights := make([]int, len(bucket))
	for i, it := range bucket {
		weights[i] = it.ChanceToSpawn
	}
	idx, ok := dice.Weighted(src, weights)
	if !ok {
		return ItemConfig{}, false
	}
	picked := bucket[idx]
	if !picked.Enabled {
		return ItemConfig{}, false
	}
	return picked, true
}

// Pool is a flattened weighted candidate set. Bucket membership plays no
// part in selection probability.
type Pool struct {
	items   []ItemConfig
	weights []int
	total   int
}

// BuildWeightedPool flattens every enabled config with positive weight from
// the buckets selected by flags.
//
// Postcondition: every pool entry is enabled and has ChanceToSpawn > 0.
func (c *Catalog) BuildWeightedPool(flags ItemType) Pool {
	var p Pool
	for _, t := range flags.Split() {
		for _, it := range c.buckets[t] {
			if !it.Enabled || it.ChanceToSpawn <= 0 {
				continue
			}
			p.items = append(p.items, it)
			p.weights = append(p.weights, it.ChanceToSpawn)
			p.total += it.ChanceToSpawn
		}
	}
	return p
}

// Len returns the number of pool entries.
func (p Pool) Len() int {
	return len(p.items)
}

// TotalWeight returns the sum of entry weights.
func (p Pool) TotalWeight() int {
	return p.total
}

// Items returns a copy of the pool entries.
func (p Pool) Items() []ItemConfig {
	return append([]ItemConfig(nil), p.items...)
}

// Pick draws one entry with probability weight/TotalWeight.
//
// Postcondition: ok is false iff the pool is empty.
func (p Pool) Pick(src dice.Source) (ItemConfig, bool) {
	idx, ok := dice.Weighted(src, p.weights)
	if !ok {
		return ItemConfig{}, false
	}
	return p.items[idx], true
}

// PickDistinct draws up to n entries without replacement, weighted by
// ChanceToSpawn. Entries sharing a resource id count as the same item.
//
// Postcondition: len(result) <= min(n, number of distinct ids); no id repeats.
func (p Pool) PickDistinct(src dice.Source, n int) []ItemConfig {
	if n <= 0 || p.total <= 0 {
		return nil
	}
	weights := append([]int(nil), p.weights...)
	var out []ItemConfig
	for len(out) < n {
		idx, ok := dice.Weighted(src, weights)
		if !ok {
			break
		}
		picked := p.items[idx]
		out = append(out, picked)
		for i, it := range p.items {
			if it.ResourceID == picked.ResourceID {
				weights[i] = 0
			}
		}
	}
	return out
}

// SelectDistinct samples up to n distinct configs uniformly from flag's
// bucket without replacement. Collisions are re-rolled at most bucket-size
// times per slot, after which the next unselected index is taken.
//
// Postcondition: no duplicates; len(result) <= min(n, bucket size).
func (c *Catalog) SelectDistinct(flag ItemType, n int, src dice.Source) []ItemConfig {
	bucket := c.buckets[flag]
	size := len(bucket)
	if n <= 0 || size == 0 {
		return nil
	}
	if n > size {
		n = size
	}
	chosen := make(map[int]struct{}, n)
	out := make([]ItemConfig, 0, n)
	for len(out) < n {
		idx := src.Intn(size)
		for tries := 0; tries < size; tries++ {
			if _, dup := chosen[idx]; !dup {
				break
			}
			idx = src.Intn(size)
		}
		for {
			if _, dup := chosen[idx]; !dup {
				break
			}
			idx = (idx + 1) % size
		}
		chosen[idx] = struct{}{}
		out = append(out, bucket[idx])
	}
	return out
}

// Summarize tallies a preview of up to count items across the categories set
// in flags, keyed by display name. nameOf resolves a resource id to its
// display name when the config carries no override.
//
// Postcondition: the sum of tally values is <= count.
func (c *Catalog) Summarize(flags ItemType, count int, src dice.Source, nameOf func(id string) string) map[string]int {
	tally := make(map[string]int)
	selected := 0
	for round := 0; round < count && selected < count; round++ {
		progressed := false
		for _, t := range flags.Split() {
			if selected >= count {
				break
			}
			if len(c.buckets[t]) == 0 {
				continue
			}
			want := dice.Between(src, 1, count-selected)
			for _, it := range c.SelectDistinct(t, want, src) {
				name := it.ResourceID
				if nameOf != nil {
					name = nameOf(it.ResourceID)
				}
				tally[it.DisplayName(name)]++
				selected++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return tally
}

// Filter returns the entries of p for which keep reports true.
func (p Pool) Filter(keep func(ItemConfig) bool) Pool {
	var out Pool
	for i, it := range p.items {
		if !keep(it) {
			continue
		}
		out.items = append(out.items, it)
		out.weights = append(out.weights, p.weights[i])
		out.total += p.weights[i]
	}
	return out
}

// Weapons returns the weighted pool of every enabled config in a weapon
// category whose mode is ModeWeapon. Magazines share those categories and
// are excluded.
func (c *Catalog) Weapons() Pool {
	return c.BuildWeightedPool(WeaponTypes).Filter(func(it ItemConfig) bool {
		return it.Mode == ModeWeapon
	})
}
