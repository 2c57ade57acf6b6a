package character_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
)

func baseSpec() character.Spec {
	return character.Spec{
		ID:         "char-1",
		CampaignID: "camp-1",
		Name:       "Mira",
		Class:      "Fighter",
		Abilities:  character.AbilityScores{Strength: 16, Dexterity: 14, Constitution: 14, Intelligence: 10, Wisdom: 12, Charisma: 8},
		Weapon:     character.Weapon{Name: "longsword", DamageDice: "1d8"},
	}
}

func TestModifier_FloorsNegative(t *testing.T) {
	assert.Equal(t, -1, character.Modifier(9))
	assert.Equal(t, -1, character.Modifier(8))
	assert.Equal(t, 0, character.Modifier(10))
	assert.Equal(t, 0, character.Modifier(11))
	assert.Equal(t, 3, character.Modifier(16))
	assert.Equal(t, -5, character.Modifier(1))
}

func TestNew_BuildsLevelOne(t *testing.T) {
	s, err := character.New(baseSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, "fighter", s.Class)
	assert.Equal(t, 12, s.MaxHP)
	assert.Equal(t, s.MaxHP, s.HP)
	assert.Equal(t, 12, s.AC)
	assert.Equal(t, 5, s.AttackBonus())
	assert.Equal(t, "1d8", s.DamageDice())
	assert.Equal(t, 3, s.DamageModifier())
}

func TestNew_DefaultsToUnarmed(t *testing.T) {
	spec := baseSpec()
	spec.Weapon = character.Weapon{}
	s, err := character.New(spec)
	require.NoError(t, err)
	assert.Equal(t, character.Unarmed, s.Weapon)
}

func TestNew_Rejects(t *testing.T) {
	for name, mutate := range map[string]func(*character.Spec){
		"empty name":    func(s *character.Spec) { s.Name = "  " },
		"missing id":    func(s *character.Spec) { s.ID = "" },
		"unknown class": func(s *character.Spec) { s.Class = "astronaut" },
	} {
		spec := baseSpec()
		mutate(&spec)
		_, err := character.New(spec)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, character.ErrInvalidCharacter), name)
	}
}

func TestNew_HPNeverBelowOne(t *testing.T) {
	spec := baseSpec()
	spec.Class = "wizard"
	spec.Abilities.Constitution = 1
	s, err := character.New(spec)
	require.NoError(t, err)
	assert.Equal(t, 1, s.MaxHP)
}

func TestLevelForXP(t *testing.T) {
	assert.Equal(t, 1, character.LevelForXP(0))
	assert.Equal(t, 1, character.LevelForXP(299))
	assert.Equal(t, 2, character.LevelForXP(300))
	assert.Equal(t, 3, character.LevelForXP(900))
	assert.Equal(t, character.MaxLevel, character.LevelForXP(1_000_000))
}

func TestAwardXP_ReportsLevelUp(t *testing.T) {
	s, _ := character.New(baseSpec())
	s.XP = 250
	d := character.AwardXP(s, 100)
	assert.Equal(t, 100, d.XPChange)
	assert.Equal(t, 2, d.NewLevel)

	after := character.Apply(s, d)
	assert.Equal(t, 350, after.XP)
	assert.Equal(t, 2, after.Level)
}

func TestAwardXP_ZeroIsNoop(t *testing.T) {
	s, _ := character.New(baseSpec())
	assert.True(t, character.AwardXP(s, 0).IsZero())
}

func TestDefeatPenalty(t *testing.T) {
	s, _ := character.New(baseSpec())
	s.HP = 0
	s.XP = 500 // level 2, floor 300, progress 200

	d := character.DefeatPenalty(s, 50, 15)
	after := character.Apply(s, d)

	assert.Equal(t, 6, after.HP)
	assert.Equal(t, 470, after.XP)
	assert.Equal(t, 1, after.Injuries)
	assert.True(t, d.Defeated)
}

func TestDefeatPenalty_MinimumHP(t *testing.T) {
	s, _ := character.New(baseSpec())
	s.MaxHP, s.HP = 1, 0
	after := character.Apply(s, character.DefeatPenalty(s, 50, 15))
	assert.Equal(t, 1, after.HP)
}

func TestDelta_Merge(t *testing.T) {
	a := character.Delta{HPChange: -3, ItemsAdded: []string{"rope"}}
	b := character.Delta{HPChange: -2, GoldChange: 5, NewLevel: 2}
	m := a.Merge(b)
	assert.Equal(t, -5, m.HPChange)
	assert.Equal(t, 5, m.GoldChange)
	assert.Equal(t, []string{"rope"}, m.ItemsAdded)
	assert.Equal(t, 2, m.NewLevel)
	assert.Nil(t, character.Delta{}.Merge(character.Delta{}).ItemsAdded)
}

func TestApply_DoesNotAliasInventory(t *testing.T) {
	s, _ := character.New(baseSpec())
	s.Inventory = make([]string, 0, 8)
	after := character.Apply(s, character.Delta{ItemsAdded: []string{"dagger"}})
	assert.Empty(t, s.Inventory)
	assert.Equal(t, []string{"dagger"}, after.Inventory)
}

func TestProperty_DefeatNeverDropsBelowLevelFloor(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, _ := character.New(baseSpec())
		s.XP = rapid.IntRange(0, 400000).Draw(rt, "xp")
		s.Level = character.LevelForXP(s.XP)
		pct := rapid.IntRange(0, 100).Draw(rt, "pct")

		after := character.Apply(s, character.DefeatPenalty(s, 50, pct))
		assert.GreaterOrEqual(rt, after.XP, character.LevelFloor(s.Level))
		assert.LessOrEqual(rt, after.XP, s.XP)
		assert.Equal(rt, s.Level, after.Level)
	})
}

func TestProperty_ApplyKeepsHPInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, _ := character.New(baseSpec())
		s.HP = rapid.IntRange(0, s.MaxHP).Draw(rt, "hp")
		change := rapid.IntRange(-100, 100).Draw(rt, "change")
		after := character.Apply(s, character.Delta{HPChange: change})
		assert.GreaterOrEqual(rt, after.HP, 0)
		assert.LessOrEqual(rt, after.HP, after.MaxHP)
	})
}
