package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/tension"
)

// TemplateNarrator renders a minimal, mechanically exact narration without
// any external service. It never fails.
type TemplateNarrator struct{}

// NewTemplateNarrator returns a TemplateNarrator.
func NewTemplateNarrator() TemplateNarrator {
	return TemplateNarrator{}
}

var phaseLines = map[tension.Phase][]string{
	tension.PhaseCalm: {
		"The moment is quiet.",
		"Nothing presses on you yet.",
		"There is time to look around.",
	},
	tension.PhaseBuilding: {
		"Something in the air has shifted.",
		"Small details start to feel wrong.",
		"You sense trouble gathering.",
	},
	tension.PhaseTense: {
		"Every second feels borrowed.",
		"Eyes are on you now.",
		"The next choice will matter.",
	},
	tension.PhaseClimax: {
		"Steel and breath are all that matter.",
		"The fight leaves no room for hesitation.",
		"Everything hangs on the next exchange.",
	},
	tension.PhaseResolution: {
		"The noise fades.",
		"Your heartbeat slows.",
		"The aftermath settles around you.",
	},
}

var closingLines = []string{
	"You take stock of your surroundings.",
	"Your grip tightens on your gear.",
	"Sounds of the world drift back in.",
	"Light shifts across the ground.",
	"You steady your breathing.",
	"The path ahead waits.",
	"Your thoughts turn to what comes next.",
	"Somewhere nearby, a door creaks.",
	"What do you do?",
}

// Narrate renders req within its mode's budget.
func (TemplateNarrator) Narrate(_ context.Context, req Request) (string, error) {
	budget := BudgetFor(req.Mode)
	actor := req.Character
	if actor == "" {
		actor = "You"
	}

	var lines []string
	if req.ActionText != "" && len(req.Summaries) == 0 {
		lines = append(lines, fmt.Sprintf("%s acts: %s.", actor, strings.TrimRight(strings.TrimSpace(req.ActionText), ".!?")))
	}
	for _, s := range req.Summaries {
		lines = append(lines, summaryLines(s)...)
	}
	for _, f := range req.Facts {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, sentence(f))
		}
	}
	if req.Clarification != "" {
		lines = append(lines, Sentences(req.Clarification)...)
	}

	filler := append(append([]string{}, phaseLines[req.Pacing.Phase]...), closingLines...)
	for i := 0; len(lines) < budget.Min && i < len(filler); i++ {
		lines = append(lines, filler[i])
	}
	return Truncate(strings.Join(lines, " "), budget.Max), nil
}

func summaryLines(s combat.MechanicalSummary) []string {
	var out []string
	switch {
	case s.CriticalMiss:
		out = append(out, fmt.Sprintf("%s rolls a natural 1 and misses %s completely.", s.Attacker, s.Target))
	case !s.Hit:
		out = append(out, fmt.Sprintf("%s attacks %s with a %d against AC %d and misses.", s.Attacker, s.Target, s.TotalAttack, s.TargetAC))
	case s.Critical:
		out = append(out, fmt.Sprintf("%s lands a critical hit on %s for %d damage.", s.Attacker, s.Target, s.Damage))
	default:
		out = append(out, fmt.Sprintf("%s hits %s with a %d against AC %d for %d damage.", s.Attacker, s.Target, s.TotalAttack, s.TargetAC, s.Damage))
	}
	switch {
	case s.TargetKilled:
		out = append(out, fmt.Sprintf("%s falls and does not rise.", s.Target))
	case s.TargetUnconscious:
		out = append(out, fmt.Sprintf("%s collapses, unconscious but alive.", s.Target))
	case s.Hit:
		out = append(out, fmt.Sprintf("%s has %d of %d hit points left.", s.Target, s.TargetHPRemaining, s.TargetMaxHP))
	}
	return out
}

func sentence(s string) string {
	if terminal(rune(s[len(s)-1])) {
		return s
	}
	return s + "."
}
