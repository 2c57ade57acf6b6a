package combat

import (
	"fmt"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
)

// AttackRoll is one d20 attack roll.
type AttackRoll struct {
	Natural      int  `json:"natural"`
	Bonus        int  `json:"bonus"`
	Total        int  `json:"total"`
	Critical     bool `json:"critical"`
	CriticalMiss bool `json:"critical_miss"`
}

// RollAttack rolls a d20 and adds bonus.
//
// Postcondition: 1 <= Natural <= 20; Total == Natural + bonus;
// Critical iff Natural == 20; CriticalMiss iff Natural == 1.
func RollAttack(bonus int, src dice.Source) AttackRoll {
	n := dice.D20(src)
	return AttackRoll{
		Natural:      n,
		Bonus:        bonus,
		Total:        n + bonus,
		Critical:     n == 20,
		CriticalMiss: n == 1,
	}
}

// Hits reports whether the roll hits armor class ac. A natural 1 always misses
// and a natural 20 always hits.
func (r AttackRoll) Hits(ac int) bool {
	switch {
	case r.CriticalMiss:
		return false
	case r.Critical:
		return true
	default:
		return r.Total >= ac
	}
}

// MechanicalSummary is the prose-agnostic record of one attack.
type MechanicalSummary struct {
	AttackerID        string `json:"attacker_id"`
	Attacker          string `json:"attacker"`
	TargetID          string `json:"target_id"`
	Target            string `json:"target"`
	Natural           int    `json:"natural"`
	TotalAttack       int    `json:"total_attack"`
	TargetAC          int    `json:"target_ac"`
	Hit               bool   `json:"hit"`
	Critical          bool   `json:"critical"`
	CriticalMiss      bool   `json:"critical_miss"`
	Damage            int    `json:"damage"`
	DamageRoll        string `json:"damage_roll,omitempty"`
	TargetHPRemaining int    `json:"target_hp_remaining"`
	TargetMaxHP       int    `json:"target_max_hp"`
	Fate              Fate   `json:"fate"`
	TargetKilled      bool   `json:"target_killed"`
	TargetUnconscious bool   `json:"target_unconscious"`
}

// ResolveAttack rolls attacker against target and applies any damage to target.
//
// Damage on a hit is the attacker's damage dice plus DamageModifier, at least 1.
// A critical hit rolls the dice twice and adds the flat modifiers once.
//
// Precondition: attacker and target are non-nil; target.CanAct().
// Postcondition: 0 <= target.HP <= target.MaxHP; a miss leaves target unchanged
// and reports Damage == 0.
func ResolveAttack(attacker, target *Combatant, src dice.Source, nonLethal bool) (MechanicalSummary, error) {
	expr, err := dice.Parse(attacker.DamageDice)
	if err != nil {
		return MechanicalSummary{}, fmt.Errorf("attacker %q damage: %w", attacker.ID, err)
	}

	roll := RollAttack(attacker.AttackBonus, src)
	summary := MechanicalSummary{
		AttackerID:   attacker.ID,
		Attacker:     attacker.Name,
		TargetID:     target.ID,
		Target:       target.Name,
		Natural:      roll.Natural,
		TotalAttack:  roll.Total,
		TargetAC:     target.AC,
		Hit:          roll.Hits(target.AC),
		Critical:     roll.Critical,
		CriticalMiss: roll.CriticalMiss,
		Fate:         FateSurvived,
	}

	if summary.Hit {
		var dmg dice.RollResult
		if roll.Critical {
			dmg = dice.RollDoubled(expr, src)
		} else {
			dmg = dice.Roll(expr, src)
		}
		summary.Damage = max(1, dmg.Total()+attacker.DamageModifier)
		summary.DamageRoll = dmg.String()
		summary.Fate = target.ApplyDamage(summary.Damage, nonLethal)
	}

	summary.TargetHPRemaining = target.HP
	summary.TargetMaxHP = target.MaxHP
	summary.TargetKilled = summary.Fate == FateKilled
	summary.TargetUnconscious = summary.Fate == FateKnockedUnconscious
	return summary, nil
}
