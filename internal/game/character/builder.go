package character

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCharacter is wrapped by every New failure.
var ErrInvalidCharacter = errors.New("invalid character")

// hitDice maps class ids to the hit die used for level-one HP.
var hitDice = map[string]int{
	"barbarian": 12,
	"fighter":   10,
	"paladin":   10,
	"ranger":    10,
	"rogue":     8,
	"cleric":    8,
	"bard":      8,
	"wizard":    6,
}

// Spec carries the player-chosen inputs for a new character.
type Spec struct {
	ID         string
	CampaignID string
	Name       string
	Class      string
	Abilities  AbilityScores
	Weapon     Weapon
	ArmorClass int
}

// New builds a level-one character from spec.
// HP = max(1, hit die + CON modifier); AC defaults to 10 + DEX modifier.
//
// Precondition: spec.Name, spec.ID and spec.CampaignID must be non-empty.
// Postcondition: Returns a State with HP == MaxHP and Level == 1, or an error.
func New(spec Spec) (State, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return State{}, fmt.Errorf("%w: name must not be empty", ErrInvalidCharacter)
	}
	if spec.ID == "" || spec.CampaignID == "" {
		return State{}, fmt.Errorf("%w: id and campaign id must not be empty", ErrInvalidCharacter)
	}
	class := strings.ToLower(spec.Class)
	hitDie, ok := hitDice[class]
	if !ok {
		return State{}, fmt.Errorf("%w: unknown class %q", ErrInvalidCharacter, spec.Class)
	}

	maxHP := max(1, hitDie+Modifier(spec.Abilities.Constitution))
	ac := spec.ArmorClass
	if ac == 0 {
		ac = 10 + Modifier(spec.Abilities.Dexterity)
	}
	weapon := spec.Weapon
	if weapon.DamageDice == "" {
		weapon = Unarmed
	}

	return State{
		ID:         spec.ID,
		CampaignID: spec.CampaignID,
		Name:       spec.Name,
		Class:      class,
		Level:      1,
		HP:         maxHP,
		MaxHP:      maxHP,
		AC:         ac,
		Abilities:  spec.Abilities,
		Weapon:     weapon,
		Inventory:  []string{},
	}, nil
}
