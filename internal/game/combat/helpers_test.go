package combat_test

import (
	"time"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
)

// faces is a scripted source: each draw returns the next face value (1-based),
// clamped to the die size. It repeats the last face when exhausted.
type faces struct {
	vals []int
	i    int
}

func roll(vals ...int) *faces { return &faces{vals: vals} }

func (f *faces) Intn(n int) int {
	v := f.vals[len(f.vals)-1]
	if f.i < len(f.vals) {
		v = f.vals[f.i]
	}
	f.i++
	return min(max(v, 1), n) - 1
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func hero() character.State {
	return character.State{
		ID:         "hero",
		CampaignID: "camp",
		Name:       "Mira",
		Level:      1,
		HP:         20,
		MaxHP:      20,
		AC:         15,
		Abilities:  character.AbilityScores{Strength: 14, Dexterity: 14},
		Weapon:     character.Weapon{Name: "longsword", DamageDice: "1d8"},
	}
}

func goblin(id string) combat.Combatant {
	return combat.Combatant{
		ID: id, Name: "Goblin", Kind: combat.KindEnemy,
		HP: 7, MaxHP: 7, AC: 13, AttackBonus: 3, DamageDice: "1d6", Alive: true, XP: 50,
	}
}

func newSession(enemies ...combat.Combatant) *combat.Session {
	s, err := combat.NewSession("camp", "hero", enemies, epoch)
	if err != nil {
		panic(err)
	}
	return s
}
