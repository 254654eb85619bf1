// Package respawn tracks interacted containers and decides, one bounded
// batch per tick, which of them may start refilling.
package respawn

import (
	"time"

	"github.com/cory-johannsen/loot/internal/game/grid"
)

// State is a container's position in the respawn cycle.
type State int

const (
	// Fresh containers are untouched since their last fill.
	Fresh State = iota
	// Interacted containers were opened and are waiting out the delay.
	Interacted
	// RespawnEligible containers have waited long enough to refill.
	RespawnEligible
	// Refilling containers have a trickle in progress.
	Refilling
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Interacted:
		return "interacted"
	case RespawnEligible:
		return "respawn_eligible"
	case Refilling:
		return "refilling"
	default:
		return "unknown"
	}
}

// Entry is the tracked state of one interacted container.
type Entry struct {
	LastInteraction time.Time
	// Remaining is the trickle budget left; meaningful only while Refilling.
	Remaining int
	Refilling bool
}

// Tracker is an insertion-ordered set of interacted containers scanned by a
// rotating cursor. Each full cycle of NextBatch calls visits every entry
// present for the whole cycle exactly once.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	order   []grid.Handle
	entries map[grid.Handle]*Entry
	cursor  int
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[grid.Handle]*Entry)}
}

// Touch records an interaction with h at now, adding h if it is untracked.
//
// Postcondition: Contains(h); the entry's LastInteraction is now.
func (t *Tracker) Touch(h grid.Handle, now time.Time) {
	if e, ok := t.entries[h]; ok {
		e.LastInteraction = now
		return
	}
	t.entries[h] = &Entry{LastInteraction: now}
	t.order = append(t.order, h)
}

// Remove drops h. The cursor is moved back when h sat before it so the
// entry that followed h is not skipped.
//
// Postcondition: reports whether h was tracked; !Contains(h).
func (t *Tracker) Remove(h grid.Handle) bool {
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	for i, x := range t.order {
		if x != h {
			continue
		}
		t.order = append(t.order[:i], t.order[i+1:]...)
		if i < t.cursor {
			t.cursor--
		}
		break
	}
	return true
}

// Contains reports whether h is tracked.
func (t *Tracker) Contains(h grid.Handle) bool {
	_, ok := t.entries[h]
	return ok
}

// Len returns the number of tracked containers.
func (t *Tracker) Len() int {
	return len(t.order)
}

// Entry returns a copy of h's entry.
func (t *Tracker) Entry(h grid.Handle) (Entry, bool) {
	e, ok := t.entries[h]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// State returns h's respawn state at now given the post-interaction delay.
// Untracked containers are Fresh.
func (t *Tracker) State(h grid.Handle, now time.Time, delay time.Duration) State {
	e, ok := t.entries[h]
	switch {
	case !ok:
		return Fresh
	case e.Refilling:
		return Refilling
	case now.Sub(e.LastInteraction) >= delay:
		return RespawnEligible
	default:
		return Interacted
	}
}

// BeginRefill starts a trickle for h with the given budget.
//
// Precondition: budget >= 1.
// Postcondition: reports false if h is untracked or already refilling.
func (t *Tracker) BeginRefill(h grid.Handle, budget int) bool {
	e, ok := t.entries[h]
	if !ok || e.Refilling {
		return false
	}
	e.Refilling = true
	e.Remaining = budget
	return true
}

// Consume spends one unit of h's trickle budget.
//
// Postcondition: ok is false if h is not refilling; otherwise remaining is
// the budget left after this unit.
func (t *Tracker) Consume(h grid.Handle) (remaining int, ok bool) {
	e, found := t.entries[h]
	if !found || !e.Refilling || e.Remaining <= 0 {
		return 0, false
	}
	e.Remaining--
	return e.Remaining, true
}

// NextBatch returns up to n entries starting at the cursor and advances it.
// A batch never wraps past the end; the call after the last batch of a
// cycle starts the next cycle from the first entry.
//
// Postcondition: no handle appears twice in one batch.
func (t *Tracker) NextBatch(n int) []grid.Handle {
	if n <= 0 || len(t.order) == 0 {
		return nil
	}
	if t.cursor >= len(t.order) {
		t.cursor = 0
	}
	end := t.cursor + n
	if end > len(t.order) {
		end = len(t.order)
	}
	batch := append([]grid.Handle(nil), t.order[t.cursor:end]...)
	t.cursor = end
	return batch
}
