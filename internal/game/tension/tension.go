// Package tension derives a bounded scene-intensity score and the pacing
// guidance narration uses to pick tone and length. It is a read model and
// never mutates combat or NPC state.
package tension

import (
	"time"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

// Phase is a pacing band.
type Phase string

const (
	PhaseCalm       Phase = "calm"
	PhaseBuilding   Phase = "building"
	PhaseTense      Phase = "tense"
	PhaseClimax     Phase = "climax"
	PhaseResolution Phase = "resolution"
)

// Override forces a phase regardless of score.
type Override string

const (
	OverrideNone       Override = "none"
	OverrideCombat     Override = "combat"
	OverrideResolution Override = "resolution"
)

// Score contributions.
const (
	baseScore            = 20
	combatBonus          = 35
	woundWeight          = 25
	hostileActionWeight  = 6
	calmActionRelief     = 4
	transgressionWeight  = 4
	maxTransgressionHeat = 20
	injuryWeight         = 3
	maxInjuryHeat        = 9
)

// Bands are the lower bounds of the building, tense and climax phases.
//
// Invariant: 0 < Building < Tense < Climax <= 100.
type Bands struct {
	Building int
	Tense    int
	Climax   int
}

// DefaultBands are calm [0,30), building [30,55), tense [55,75), climax [75,100].
var DefaultBands = Bands{Building: 30, Tense: 55, Climax: 75}

// Input is what the score is derived from.
type Input struct {
	World         world.State
	Character     character.State
	CombatActive  bool
	RecentActions []world.ActionRecord
}

// Calculate returns the tension score for in.
//
// Postcondition: 0 <= score <= 100.
func Calculate(in Input) int {
	score := baseScore
	if in.CombatActive {
		score += combatBonus
	}
	if c := in.Character; c.MaxHP > 0 {
		missing := max(c.MaxHP-c.HP, 0)
		score += missing * woundWeight / c.MaxHP
	}
	for _, a := range in.RecentActions {
		if a.Hostile {
			score += hostileActionWeight
		} else {
			score -= calmActionRelief
		}
	}
	score += min(in.World.OpenTransgressions()*transgressionWeight, maxTransgressionHeat)
	score += min(in.Character.Injuries*injuryWeight, maxInjuryHeat)
	return clamp(score)
}

func clamp(score int) int {
	return min(max(score, 0), 100)
}

// PhaseFor maps score to a phase. OverrideCombat forces climax and
// OverrideResolution forces resolution.
func (b Bands) PhaseFor(score int, override Override) Phase {
	switch override {
	case OverrideCombat:
		return PhaseClimax
	case OverrideResolution:
		return PhaseResolution
	}
	score = clamp(score)
	switch {
	case score >= b.Climax:
		return PhaseClimax
	case score >= b.Tense:
		return PhaseTense
	case score >= b.Building:
		return PhaseBuilding
	default:
		return PhaseCalm
	}
}

// Valid reports whether b is strictly increasing within (0,100].
func (b Bands) Valid() bool {
	return b.Building > 0 && b.Building < b.Tense && b.Tense < b.Climax && b.Climax <= 100
}

// Estimator scores a scene and snapshots the result.
type Estimator struct {
	Bands Bands
}

// NewEstimator returns an Estimator; invalid bands fall back to DefaultBands.
func NewEstimator(b Bands) Estimator {
	if !b.Valid() {
		b = DefaultBands
	}
	return Estimator{Bands: b}
}

// Estimate scores in and returns the state to persist together with pacing.
func (e Estimator) Estimate(in Input, override Override, now time.Time) (world.TensionState, Pacing) {
	if override == "" || override == OverrideNone {
		if in.CombatActive {
			override = OverrideCombat
		}
	}
	score := Calculate(in)
	phase := e.Bands.PhaseFor(score, override)
	return world.TensionState{Score: score, Phase: string(phase), UpdatedAt: now.UTC()}, PacingFor(phase)
}
