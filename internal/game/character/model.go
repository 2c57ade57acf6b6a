// Package character defines the persistent player character state and the pure
// progression rules applied to it after combat.
package character

import "time"

// AbilityScores holds the six ability score values for a character.
type AbilityScores struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// Modifier returns the ability modifier for score: floor((score - 10) / 2).
func Modifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}

// ModifierFor returns the modifier of the named ability ("strength", "dex", ...).
// Unknown names yield 0.
func (a AbilityScores) ModifierFor(ability string) int {
	switch ability {
	case "strength", "str":
		return Modifier(a.Strength)
	case "dexterity", "dex":
		return Modifier(a.Dexterity)
	case "constitution", "con":
		return Modifier(a.Constitution)
	case "intelligence", "int":
		return Modifier(a.Intelligence)
	case "wisdom", "wis":
		return Modifier(a.Wisdom)
	case "charisma", "cha":
		return Modifier(a.Charisma)
	}
	return 0
}

// Weapon is the damage source used by the player's attacks.
type Weapon struct {
	Name       string `json:"name"`
	DamageDice string `json:"damage_dice"`
}

// Unarmed is used when the character has no weapon equipped.
var Unarmed = Weapon{Name: "fists", DamageDice: "1d4"}

// State is a player character's persistent state within one campaign.
//
// Invariant: 0 <= HP <= MaxHP; XP >= 0; Gold >= 0.
// Version is the optimistic concurrency token owned by the persistence layer.
type State struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	Name       string        `json:"name"`
	Class      string        `json:"class"`
	Level      int           `json:"level"`
	XP         int           `json:"xp"`
	HP         int           `json:"hp"`
	MaxHP      int           `json:"max_hp"`
	AC         int           `json:"ac"`
	Abilities  AbilityScores `json:"abilities"`
	Weapon     Weapon        `json:"weapon"`
	Gold       int           `json:"gold"`
	Inventory  []string      `json:"inventory"`
	Injuries   int           `json:"injuries"`
	Version    int64         `json:"version"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Inventory = append([]string(nil), s.Inventory...)
	return s
}

// AttackBonus returns proficiency plus strength modifier.
func (s State) AttackBonus() int {
	return ProficiencyBonus(s.Level) + Modifier(s.Abilities.Strength)
}

// DamageDice returns the equipped weapon's dice, or unarmed dice when none is equipped.
func (s State) DamageDice() string {
	if s.Weapon.DamageDice == "" {
		return Unarmed.DamageDice
	}
	return s.Weapon.DamageDice
}

// DamageModifier is the flat bonus added to weapon damage.
func (s State) DamageModifier() int {
	return Modifier(s.Abilities.Strength)
}
