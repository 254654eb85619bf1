package loot

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/loot/internal/game/catalog"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/rules"
)

// Container is a world entity exposing lootable storage.
type Container interface {
	// TypeFlags are the item categories the container may hold.
	TypeFlags() catalog.ItemType
	// InsertItem stores one item; it reports false when storage rejects it.
	InsertItem(ins Insertion) bool
}

// World resolves container handles. A destroyed container no longer resolves.
type World interface {
	Container(h grid.Handle) (Container, bool)
}

// Players reports active player positions.
type Players interface {
	PlayerPositions() []grid.Position
}

// ItemCatalog is the host's live item registry.
type ItemCatalog interface {
	// Factions lists the factions whose item lists are enumerated.
	Factions() []string
	// ItemsByFaction lists the spawnable items of one faction.
	ItemsByFaction(faction string) []rules.Candidate
	// IsValidResource reports whether id resolves to a real asset.
	IsValidResource(id string) bool
	// MagazineOf returns the magazine resource a weapon takes.
	MagazineOf(weaponID string) (string, bool)
}

// Scavenger is an AI character that can be handed a loadout.
type Scavenger interface {
	EquipWeapon(ins Insertion) bool
	StoreMagazine(ins Insertion) bool
}

// EventSink receives every successful placement.
type EventSink interface {
	Record(ev SpawnEvent)
}

// Reason names what triggered a placement.
type Reason string

const (
	ReasonGlobal    Reason = "global"
	ReasonTrickle   Reason = "trickle"
	ReasonManual    Reason = "manual"
	ReasonScavenger Reason = "scavenger"
)

// SpawnEvent describes one placed item.
type SpawnEvent struct {
	Time       time.Time   `json:"time"`
	Reason     Reason      `json:"reason"`
	Container  grid.Handle `json:"container,omitempty"`
	Cell       grid.Cell   `json:"cell"`
	ResourceID string      `json:"resource_id"`
	InstanceID uuid.UUID   `json:"instance_id"`
}

// Insertion is one item instance handed to a container, with its ammunition
// rolled at insert time.
type Insertion struct {
	ResourceID string
	InstanceID uuid.UUID
	Mode       catalog.ItemMode
	// AmmoPercent is the fill fraction of an ammunition item, in (0, 1].
	AmmoPercent float64
	// StripMagazine asks the host to remove a weapon's attached magazine.
	StripMagazine bool
	// WeaponAmmoPercent is the fill fraction of a kept weapon magazine, in [0, 1].
	WeaponAmmoPercent float64
}

// Rounds converts AmmoPercent to a round count for a magazine of capacity.
//
// Postcondition: 1 <= result <= capacity when capacity >= 1; 0 otherwise.
func (in Insertion) Rounds(capacity int) int {
	if capacity < 1 {
		return 0
	}
	n := int(math.Round(float64(capacity) * in.AmmoPercent))
	return min(max(n, 1), capacity)
}

// WeaponRounds converts WeaponAmmoPercent to a round count. Stripped
// weapons carry none.
//
// Postcondition: 0 <= result <= capacity.
func (in Insertion) WeaponRounds(capacity int) int {
	if in.StripMagazine || capacity < 1 {
		return 0
	}
	n := int(math.Round(float64(capacity) * in.WeaponAmmoPercent))
	return min(max(n, 0), capacity)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
