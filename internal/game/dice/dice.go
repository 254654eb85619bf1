// Package dice provides the randomness abstraction used by loot selection.
// Every random decision in the engine goes through a Source so tests can
// replay draws deterministically.
package dice

import "fmt"

// Source is the randomness provider for loot rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Range is an inclusive integer interval such as "1..6 items".
//
// Invariant: Min <= Max after Validate succeeds.
type Range struct {
	Min int
	Max int
}

// Validate reports whether the range is well formed.
//
// Postcondition: Returns nil iff Min <= Max.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("dice: range min (%d) must be <= max (%d)", r.Min, r.Max)
	}
	return nil
}

// String returns the range in "min..max" form.
func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

// Between returns a uniformly distributed int in [lo, hi].
//
// Precondition: src must be non-nil.
// Postcondition: lo <= result <= hi; returns lo when hi <= lo.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Roll returns a uniformly distributed int within r.
//
// Postcondition: r.Min <= result <= r.Max when r is valid.
func (r Range) Roll(src Source) int {
	return Between(src, r.Min, r.Max)
}

// Weighted returns the index selected from weights with probability
// proportional to each weight. Non-positive weights are never selected.
//
// Postcondition: Returns (-1, false) when the total weight is zero.
func Weighted(src Source, weights []int) (int, bool) {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1, false
	}
	roll := src.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return i, true
		}
		roll -= w
	}
	return -1, false
}
