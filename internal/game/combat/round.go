package combat

import (
	"fmt"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
)

// PlayerAttackResult is the outcome of the player's turn.
type PlayerAttackResult struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Summary    MechanicalSummary `json:"mechanical_summary"`
	CombatOver bool              `json:"combat_over"`
	Outcome    Outcome           `json:"outcome"`
	XPGained   int               `json:"xp_gained"`
}

// ProcessPlayerAttack resolves the player's attack on targetID within sess.
//
// A protected target, or any target when forceNonLethal is set, is knocked
// unconscious at 1 HP instead of being killed. Defeating the last standing
// enemy ends the session in victory and awards experience exactly once.
//
// Precondition: sess is owned by the caller; src is non-nil.
// Postcondition: When targetID is not a standing enemy of an active session,
// Success is false, Error describes why, and sess is unchanged.
func ProcessPlayerAttack(char character.State, sess *Session, targetID string, src dice.Source, forceNonLethal bool) PlayerAttackResult {
	player := PlayerCombatant(char)
	stale := func(format string, args ...any) PlayerAttackResult {
		return PlayerAttackResult{
			Error: fmt.Sprintf(format, args...),
			Summary: MechanicalSummary{
				AttackerID: player.ID,
				Attacker:   player.Name,
				TargetID:   targetID,
				Fate:       FateSurvived,
			},
			CombatOver: sess != nil && sess.CombatOver,
			Outcome:    outcomeOf(sess),
		}
	}

	if !sess.IsActive() {
		return stale("no active combat")
	}
	target := sess.Enemy(targetID)
	if target == nil {
		return stale("target %q is not part of this combat", targetID)
	}
	if !target.CanAct() {
		return stale("target %q is already down", targetID)
	}

	// Resolve against a copy so a dice failure leaves sess untouched.
	victim := *target
	summary, err := ResolveAttack(&player, &victim, src, forceNonLethal)
	if err != nil {
		return stale("%v", err)
	}
	*target = victim

	res := PlayerAttackResult{Success: true, Summary: summary, Outcome: OutcomeNone}
	if sess.allEnemiesDown() {
		sess.end(OutcomeVictory)
		res.XPGained = sess.awardXP()
	}
	res.CombatOver = sess.CombatOver
	res.Outcome = sess.Outcome
	return res
}

// EnemyTurnsResult aggregates every enemy attack after the player's turn.
type EnemyTurnsResult struct {
	Attacks             []MechanicalSummary `json:"attacks"`
	TotalDamageToPlayer int                 `json:"total_damage_to_player"`
	PlayerHPRemaining   int                 `json:"player_hp_remaining"`
	CombatOver          bool                `json:"combat_over"`
	Outcome             Outcome             `json:"outcome"`
}

// ProcessEnemyTurns lets every standing enemy attack the player in turn order.
// If the player drops to 0 HP the session ends in player_defeated; otherwise the
// round advances and the turn returns to the player.
//
// Precondition: sess is owned by the caller.
// Postcondition: TotalDamageToPlayer == sum of Attacks[i].Damage; the session is
// unchanged when it is not active.
func ProcessEnemyTurns(char character.State, sess *Session, src dice.Source) (EnemyTurnsResult, error) {
	player := PlayerCombatant(char)
	res := EnemyTurnsResult{PlayerHPRemaining: player.HP, Outcome: outcomeOf(sess)}
	if !sess.IsActive() {
		res.CombatOver = sess != nil && sess.CombatOver
		return res, nil
	}

	for _, id := range sess.TurnOrder[1:] {
		enemy := sess.Enemy(id)
		if enemy == nil || !enemy.CanAct() {
			continue
		}
		sess.CurrentTurn = id
		summary, err := ResolveAttack(enemy, &player, src, false)
		if err != nil {
			sess.CurrentTurn = sess.CharacterID
			return EnemyTurnsResult{}, err
		}
		res.Attacks = append(res.Attacks, summary)
		res.TotalDamageToPlayer += summary.Damage
		if player.HP == 0 {
			sess.end(OutcomePlayerDefeated)
			break
		}
	}

	if sess.State == StateActive {
		sess.Round++
		sess.CurrentTurn = sess.CharacterID
	}
	res.PlayerHPRemaining = player.HP
	res.CombatOver = sess.CombatOver
	res.Outcome = sess.Outcome
	return res, nil
}

// FleeResult is the outcome of an escape attempt.
type FleeResult struct {
	Natural int  `json:"natural"`
	Total   int  `json:"total"`
	DC      int  `json:"dc"`
	Success bool `json:"success"`
}

// Flee attempts to escape: d20 + DEX modifier against dc. Success ends the
// session as fled; failure leaves it active for the enemies' turns.
func Flee(char character.State, sess *Session, dc int, src dice.Source) (FleeResult, error) {
	if !sess.IsActive() {
		return FleeResult{}, ErrNotActive
	}
	n := dice.D20(src)
	res := FleeResult{Natural: n, Total: n + character.Modifier(char.Abilities.Dexterity), DC: dc}
	res.Success = n != 1 && (n == 20 || res.Total >= dc)
	if res.Success {
		sess.end(OutcomeFled)
	}
	return res, nil
}

func outcomeOf(sess *Session) Outcome {
	if sess == nil || sess.Outcome == "" {
		return OutcomeNone
	}
	return sess.Outcome
}
