// Package narration turns mechanical outcomes and pacing into prose. Mechanics
// are authoritative: a narrator may describe them but never change them.
package narration

import (
	"context"
	"errors"
	"strings"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/tension"
)

// Mode selects the sentence budget.
type Mode string

const (
	ModeIntro       Mode = "intro"
	ModeExploration Mode = "exploration"
	ModeSocial      Mode = "social"
	ModeCombat      Mode = "combat"
	ModeDowntime    Mode = "downtime"
	ModeTravel      Mode = "travel"
	ModeRest        Mode = "rest"
)

// Budget is an inclusive sentence-count range.
type Budget struct {
	Min int
	Max int
}

var budgets = map[Mode]Budget{
	ModeIntro:       {12, 16},
	ModeExploration: {6, 10},
	ModeSocial:      {6, 10},
	ModeCombat:      {4, 8},
	ModeDowntime:    {4, 8},
	ModeTravel:      {6, 8},
	ModeRest:        {3, 6},
}

// BudgetFor returns the budget of mode; unknown modes use exploration.
func BudgetFor(mode Mode) Budget {
	if b, ok := budgets[mode]; ok {
		return b
	}
	return budgets[ModeExploration]
}

var (
	// ErrEmptyNarration is returned when a narrator produced no text.
	ErrEmptyNarration = errors.New("narration is empty")
	// ErrInconsistent is returned when text contradicts the mechanical outcome.
	ErrInconsistent = errors.New("narration contradicts mechanics")
)

// Request is everything a narrator may draw on for one beat.
type Request struct {
	Mode          Mode
	Pacing        tension.Pacing
	Character     string
	Location      string
	ActionText    string
	Summaries     []combat.MechanicalSummary
	Clarification string
	// Facts are semantic notes from other stages, such as plot armor stage
	// directions or check outcomes. Narrators must keep them true.
	Facts []string
}

// Narrator renders a Request as prose.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, req Request) (string, error)

// Narrate calls f.
func (f NarratorFunc) Narrate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// deathWords may only appear when some summary reports a kill.
var deathWords = []string{"slain", "killed", "kills", "dies", "dead", "corpse", "lifeless"}

// Check verifies text against req: it must be non-empty and must not report
// a death that no summary recorded.
func Check(text string, req Request) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyNarration
	}
	for _, s := range req.Summaries {
		if s.TargetKilled {
			return nil
		}
	}
	if len(req.Summaries) == 0 {
		return nil
	}
	lower := " " + strings.ToLower(text) + " "
	for _, w := range deathWords {
		if containsWord(lower, w) {
			return ErrInconsistent
		}
	}
	return nil
}

func containsWord(text, word string) bool {
	for i := strings.Index(text, word); i >= 0; {
		before := text[i-1]
		end := i + len(word)
		after := byte(' ')
		if end < len(text) {
			after = text[end]
		}
		if !isLetter(before) && !isLetter(after) {
			return true
		}
		next := strings.Index(text[end:], word)
		if next < 0 {
			return false
		}
		i = end + next
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Sentences splits text after each run of terminal punctuation.
func Sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !terminal(runes[i]) {
			continue
		}
		for i+1 < len(runes) && (terminal(runes[i+1]) || runes[i+1] == '"' || runes[i+1] == '\'') {
			i++
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func terminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Truncate keeps at most n sentences of text.
func Truncate(text string, n int) string {
	s := Sentences(text)
	if len(s) <= n {
		return strings.TrimSpace(text)
	}
	return strings.Join(s[:n], " ")
}
