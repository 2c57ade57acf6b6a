// Package combat implements the mechanical resolver and the per-session combat
// state machine: attack rolls, damage, enemy turns, and combat outcomes.
package combat

import (
	"fmt"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
)

// Kind distinguishes the player, ordinary enemies, and protected NPCs.
type Kind string

const (
	KindPlayer       Kind = "player"
	KindEnemy        Kind = "enemy"
	KindProtectedNPC Kind = "protected_npc"
)

// Fate is the result of applying damage to a combatant.
type Fate string

const (
	FateSurvived           Fate = "survived"
	FateKnockedUnconscious Fate = "knocked_unconscious"
	FateKilled             Fate = "killed"
)

// Combatant is one participant in a combat session.
//
// Invariant: 0 <= HP <= MaxHP. HP == 0 implies !Alive for enemies.
// A protected NPC never reaches HP 0; it is left at 1 with Unconscious set.
// The player reaching 0 is Unconscious, never dead.
type Combatant struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           Kind   `json:"kind"`
	HP             int    `json:"hp"`
	MaxHP          int    `json:"max_hp"`
	AC             int    `json:"ac"`
	AttackBonus    int    `json:"attack_bonus"`
	DamageDice     string `json:"damage_dice"`
	DamageModifier int    `json:"damage_modifier,omitempty"`
	Alive          bool   `json:"alive"`
	Unconscious    bool   `json:"unconscious,omitempty"`
	XP             int    `json:"xp,omitempty"`
	TemplateID     string `json:"template_id,omitempty"`
}

// IsPlayer reports whether c is the player character.
func (c *Combatant) IsPlayer() bool { return c.Kind == KindPlayer }

// IsProtected reports whether c can never be killed by mechanical resolution.
func (c *Combatant) IsProtected() bool { return c.Kind == KindProtectedNPC }

// CanAct reports whether c is still standing.
func (c *Combatant) CanAct() bool { return c.Alive && !c.Unconscious }

// ApplyDamage reduces HP by amount and returns the resulting fate.
//
// Precondition: amount >= 0.
// Postcondition: 0 <= HP <= MaxHP. When HP would reach 0, a protected or
// non-lethal target is left at 1 HP and marked Unconscious, the player is left
// at 0 HP and marked Unconscious, and anyone else is killed.
func (c *Combatant) ApplyDamage(amount int, nonLethal bool) Fate {
	if amount <= 0 {
		return FateSurvived
	}
	c.HP -= amount
	if c.HP > 0 {
		return FateSurvived
	}
	switch {
	case c.IsPlayer():
		c.HP = 0
		c.Unconscious = true
		return FateKnockedUnconscious
	case c.IsProtected() || nonLethal:
		c.HP = 1
		c.Unconscious = true
		return FateKnockedUnconscious
	default:
		c.HP = 0
		c.Alive = false
		return FateKilled
	}
}

// PlayerCombatant builds the player's combatant from their persistent state.
func PlayerCombatant(s character.State) Combatant {
	hp := min(max(s.HP, 0), s.MaxHP)
	return Combatant{
		ID:             s.ID,
		Name:           s.Name,
		Kind:           KindPlayer,
		HP:             hp,
		MaxHP:          s.MaxHP,
		AC:             s.AC,
		AttackBonus:    s.AttackBonus(),
		DamageDice:     s.DamageDice(),
		DamageModifier: s.DamageModifier(),
		Alive:          true,
		Unconscious:    hp == 0,
	}
}

// EnemyFromTemplate builds an enemy instance of t with the given instance id.
// Plot-significant and essential templates become protected combatants.
func EnemyFromTemplate(t *npc.Template, id string) Combatant {
	kind := KindEnemy
	if t.IsPlotSignificant() || t.IsEssential() {
		kind = KindProtectedNPC
	}
	return Combatant{
		ID:          id,
		Name:        t.Name,
		Kind:        kind,
		HP:          t.MaxHP,
		MaxHP:       t.MaxHP,
		AC:          t.AC,
		AttackBonus: t.AttackBonus,
		DamageDice:  t.DamageDice,
		Alive:       true,
		XP:          t.XP,
		TemplateID:  t.ID,
	}
}

// ImprovisedEnemy builds an ordinary enemy for an NPC the blueprint does not describe.
func ImprovisedEnemy(id, name string) Combatant {
	return Combatant{
		ID:          id,
		Name:        name,
		Kind:        KindEnemy,
		HP:          7,
		MaxHP:       7,
		AC:          11,
		AttackBonus: 2,
		DamageDice:  "1d6",
		Alive:       true,
		XP:          25,
	}
}

func (c *Combatant) String() string {
	return fmt.Sprintf("%s(%s %d/%d)", c.Name, c.Kind, c.HP, c.MaxHP)
}
