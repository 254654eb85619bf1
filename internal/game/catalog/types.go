package catalog

import (
	"fmt"
	"strings"
)

// ItemType is a single-bit item category. Containers and queries combine
// several categories into a bit set of the same type.
type ItemType uint32

// Item categories. The order of AllItemTypes is the canonical iteration and
// persistence order.
const (
	TypeRifle ItemType = 1 << iota
	TypePistol
	TypeRocketLauncher
	TypeSniperRifle
	TypeMachineGun
	TypeExplosives
	TypeLethalThrowable
	TypeNonLethalThrowable
	TypeMedical
	TypeEquipment
	TypeRadioBackpack
	TypeBackpack
	TypeHeadwear
	TypeTorso
	TypeVestAndWaist
	TypeLegs
	TypeFootwear
	TypeHandwear
	TypeWeaponAttachment
)

// AllItemTypes lists every category exactly once.
var AllItemTypes = []ItemType{
	TypeRifle,
	TypePistol,
	TypeRocketLauncher,
	TypeSniperRifle,
	TypeMachineGun,
	TypeExplosives,
	TypeLethalThrowable,
	TypeNonLethalThrowable,
	TypeMedical,
	TypeEquipment,
	TypeRadioBackpack,
	TypeBackpack,
	TypeHeadwear,
	TypeTorso,
	TypeVestAndWaist,
	TypeLegs,
	TypeFootwear,
	TypeHandwear,
	TypeWeaponAttachment,
}

// WeaponTypes is the set of categories a scavenger loadout draws weapons from.
const WeaponTypes = TypeRifle | TypePistol | TypeSniperRifle | TypeMachineGun

// AnyType has every category bit set.
const AnyType = TypeRifle | TypePistol | TypeRocketLauncher | TypeSniperRifle | TypeMachineGun |
	TypeExplosives | TypeLethalThrowable | TypeNonLethalThrowable | TypeMedical | TypeEquipment |
	TypeRadioBackpack | TypeBackpack | TypeHeadwear | TypeTorso | TypeVestAndWaist | TypeLegs |
	TypeFootwear | TypeHandwear | TypeWeaponAttachment

var typeKeys = map[ItemType]string{
	TypeRifle:              "rifle",
	TypePistol:             "pistol",
	TypeRocketLauncher:     "rocketLauncher",
	TypeSniperRifle:        "sniperRifle",
	TypeMachineGun:         "machineGun",
	TypeExplosives:         "explosives",
	TypeLethalThrowable:    "lethalThrowable",
	TypeNonLethalThrowable: "nonLethalThrowable",
	TypeMedical:            "medical",
	TypeEquipment:          "equipment",
	TypeRadioBackpack:      "radioBackpack",
	TypeBackpack:           "backpack",
	TypeHeadwear:           "headwear",
	TypeTorso:              "torso",
	TypeVestAndWaist:       "vestAndWaist",
	TypeLegs:               "legs",
	TypeFootwear:           "footwear",
	TypeHandwear:           "handwear",
	TypeWeaponAttachment:   "weaponAttachment",
}

// Key returns the persisted section key of a single category, or "" for a
// value that is not exactly one known category.
func (t ItemType) Key() string {
	return typeKeys[t]
}

// Has reports whether every bit of other is set in t.
func (t ItemType) Has(other ItemType) bool {
	return other != 0 && t&other == other
}

// Split returns the known categories set in t in canonical order.
func (t ItemType) Split() []ItemType {
	var out []ItemType
	for _, it := range AllItemTypes {
		if t.Has(it) {
			out = append(out, it)
		}
	}
	return out
}

// String returns the category keys joined by "|".
func (t ItemType) String() string {
	parts := t.Split()
	if len(parts) == 0 {
		return "none"
	}
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = p.Key()
	}
	return strings.Join(keys, "|")
}

// ParseItemType parses a single category key or a "|"-separated list of keys.
//
// Postcondition: Returns an error naming the first unknown key.
func ParseItemType(s string) (ItemType, error) {
	var out ItemType
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for t, key := range typeKeys {
			if strings.EqualFold(key, part) {
				out |= t
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("catalog: unknown item type %q", part)
		}
	}
	if out == 0 {
		return 0, fmt.Errorf("catalog: empty item type %q", s)
	}
	return out, nil
}

// ItemMode classifies how an item is used. Unlike ItemType it is not a flag.
type ItemMode int

const (
	ModeDefault ItemMode = iota
	ModeWeapon
	ModeAmmunition
	ModeConsumable
	ModeAttachment
)

var modeNames = map[ItemMode]string{
	ModeDefault:    "default",
	ModeWeapon:     "weapon",
	ModeAmmunition: "ammunition",
	ModeConsumable: "consumable",
	ModeAttachment: "attachment",
}

// String returns the lower-case mode name.
func (m ItemMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseItemMode parses a mode name; the empty string is ModeDefault.
func ParseItemMode(s string) (ItemMode, error) {
	if s == "" {
		return ModeDefault, nil
	}
	for m, n := range modeNames {
		if strings.EqualFold(n, s) {
			return m, nil
		}
	}
	return ModeDefault, fmt.Errorf("catalog: unknown item mode %q", s)
}
