package lootmap

import (
	"time"

	"github.com/cory-johannsen/loot/internal/game/dice"
)

// Persisted tunable keys.
const (
	KeyMagazineMinAmmoPercent               = "magazineMinAmmoPercent"
	KeyMagazineMaxAmmoPercent               = "magazineMaxAmmoPercent"
	KeyShouldSpawnMagazine                  = "shouldSpawnMagazine"
	KeyIsLootEnabled                        = "isLootEnabled"
	KeyIsRespawnLootEnabled                 = "isRespawnLootEnabled"
	KeyGridSize                             = "gridSize"
	KeyDeadZoneGridRadius                   = "deadZoneGridRadius"
	KeyRespawnLootTimerInSeconds            = "respawnLootTimerInSeconds"
	KeyRespawnAfterLastInteractionInMinutes = "respawnAfterLastInteractionInMinutes"
	KeyRespawnLootItemThreshold             = "respawnLootItemThreshold"
	KeyRespawnLootRadius                    = "respawnLootRadius"
	KeyUnsearchedTimeRatio                  = "unsearchedTimeRatio"
	KeySearchedTimeRatio                    = "searchedTimeRatio"
	KeyRespawnLootProcessorBatchSize        = "respawnLootProcessorBatchSize"
	KeyScavengerLoadout                     = "scavengerLoadout"
)

// ScavengerLoadout configures the weapon and magazines handed to AI scavengers.
type ScavengerLoadout struct {
	IsEnabled    bool `json:"isEnabled"`
	MinMagazines int  `json:"minMagazines"`
	MaxMagazines int  `json:"maxMagazines"`
}

// Tunables are the game settings persisted in the loot map.
type Tunables struct {
	MagazineMinAmmoPercent               int
	MagazineMaxAmmoPercent               int
	ShouldSpawnMagazine                  bool
	IsLootEnabled                        bool
	IsRespawnLootEnabled                 bool
	GridSize                             int
	DeadZoneGridRadius                   int
	RespawnLootTimerInSeconds            int
	RespawnAfterLastInteractionInMinutes int
	// RespawnLootItemThreshold is the trickle budget of one respawn cycle.
	RespawnLootItemThreshold      int
	RespawnLootRadius             int
	UnsearchedTimeRatio           float64
	SearchedTimeRatio             float64
	RespawnLootProcessorBatchSize int
	ScavengerLoadout              ScavengerLoadout
}

// DefaultTunables returns the documented defaults.
func DefaultTunables() Tunables {
	return Tunables{
		MagazineMinAmmoPercent:               80,
		MagazineMaxAmmoPercent:               100,
		ShouldSpawnMagazine:                  true,
		IsLootEnabled:                        true,
		IsRespawnLootEnabled:                 true,
		GridSize:                             100,
		DeadZoneGridRadius:                   1,
		RespawnLootTimerInSeconds:            10,
		RespawnAfterLastInteractionInMinutes: 1,
		RespawnLootItemThreshold:             4,
		RespawnLootRadius:                    5,
		UnsearchedTimeRatio:                  1.0,
		SearchedTimeRatio:                    0.25,
		RespawnLootProcessorBatchSize:        10,
		ScavengerLoadout: ScavengerLoadout{
			IsEnabled:    true,
			MinMagazines: 0,
			MaxMagazines: 3,
		},
	}
}

// RespawnInterval is the period of the respawn tick.
func (t Tunables) RespawnInterval() time.Duration {
	return time.Duration(t.RespawnLootTimerInSeconds) * time.Second
}

// RespawnDelay is the time after the last interaction before a container
// becomes respawn eligible.
func (t Tunables) RespawnDelay() time.Duration {
	return time.Duration(t.RespawnAfterLastInteractionInMinutes) * time.Minute
}

// AmmoRange is the magazine fill range in percent.
func (t Tunables) AmmoRange() dice.Range {
	return dice.Range{Min: t.MagazineMinAmmoPercent, Max: t.MagazineMaxAmmoPercent}
}

// MagazineRange is the scavenger magazine count range.
func (t Tunables) MagazineRange() dice.Range {
	return dice.Range{Min: t.ScavengerLoadout.MinMagazines, Max: t.ScavengerLoadout.MaxMagazines}
}
