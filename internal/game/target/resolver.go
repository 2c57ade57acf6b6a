// Package target maps a player's intent, given as an explicit id or free text,
// to a concrete combatant or NPC. Resolution is a pure function of its input.
package target

import (
	"fmt"
	"strings"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

// Status is the outcome class of a resolution.
type Status string

const (
	StatusSingleTarget       Status = "single_target"
	StatusNeedsClarification Status = "needs_clarification"
	StatusNoTargetFound      Status = "no_target_found"
)

// Type names the source a candidate came from.
type Type string

const (
	TypeCombatEnemy  Type = "combat_enemy"
	TypeActiveNPC    Type = "active_npc"
	TypeBlueprintNPC Type = "blueprint_npc"
)

// maxOptions caps the candidates listed in a clarification.
const maxOptions = 5

// Candidate is one possible target.
type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Role     string `json:"role,omitempty"`
	Location string `json:"location,omitempty"`
	Summary  string `json:"summary"`
	// Standing is false for combat enemies that are dead or unconscious.
	Standing bool `json:"standing"`
}

// Resolution is the result of Resolve.
type Resolution struct {
	Status           Status      `json:"status"`
	Target           *Candidate  `json:"target,omitempty"`
	TargetID         string      `json:"target_id,omitempty"`
	TargetType       Type        `json:"target_type,omitempty"`
	AmbiguousOptions []Candidate `json:"ambiguous_options,omitempty"`
	Clarification    string      `json:"clarification,omitempty"`
}

// Input carries everything Resolve reads.
type Input struct {
	ActionText       string
	ExplicitTargetID string
	Combat           *combat.Session
	World            world.State
	Blueprint        *npc.Blueprint
}

// match tiers, strongest first.
const (
	tierNone = iota
	tierFuzzy
	tierWord
	tierExact
)

// Resolve maps in to a target.
//
// An explicit id always wins. Otherwise the action text is matched against
// standing combat enemies, the scene's active NPCs, and blueprint NPCs at the
// current location. A full-name match outranks a single-word match, which
// outranks a fuzzy match; ties at the strongest tier need clarification. In an
// active combat with exactly one standing enemy, a bare attack verb resolves
// to that enemy.
func Resolve(in Input) Resolution {
	candidates := collect(in)

	if in.ExplicitTargetID != "" {
		for i := range candidates {
			if candidates[i].ID == in.ExplicitTargetID {
				return single(candidates[i])
			}
		}
		return Resolution{Status: StatusNoTargetFound}
	}

	text := normalise(in.ActionText)
	tokens := tokenise(text)

	best := match{}
	var matches []Candidate
	for _, c := range candidates {
		if c.Type == TypeCombatEnemy && !c.Standing {
			continue
		}
		m := score(c, text, tokens)
		switch {
		case m.tier == tierNone || m.less(best):
		case best.less(m):
			best = m
			matches = []Candidate{c}
		default:
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
	case 1:
		return single(matches[0])
	default:
		return clarify(matches)
	}

	if in.Combat.IsActive() && HasAttackVerb(in.ActionText) {
		var standing []Candidate
		for _, c := range candidates {
			if c.Type == TypeCombatEnemy && c.Standing {
				standing = append(standing, c)
			}
		}
		switch len(standing) {
		case 0:
		case 1:
			return single(standing[0])
		default:
			return clarify(standing)
		}
	}
	return Resolution{Status: StatusNoTargetFound}
}

// collect gathers candidates from every source, de-duplicated by id with the
// earlier source taking precedence.
func collect(in Input) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	add := func(c Candidate) {
		if c.ID == "" || seen[c.ID] {
			return
		}
		seen[c.ID] = true
		c.Summary = summarize(c)
		out = append(out, c)
	}

	if in.Combat.IsActive() {
		for _, e := range in.Combat.Enemies {
			c := Candidate{ID: e.ID, Name: e.Name, Type: TypeCombatEnemy, Standing: e.CanAct()}
			if t := in.Blueprint.Get(e.TemplateID); t != nil {
				c.Role = t.Role
			}
			add(c)
		}
	}
	for _, n := range in.World.ActiveNPCs {
		c := Candidate{ID: n.ID, Name: n.Name, Type: TypeActiveNPC, Role: n.Role, Location: in.World.Location, Standing: !n.Unconscious}
		if t := in.Blueprint.Get(n.ID); t != nil && c.Role == "" {
			c.Role = t.Role
		}
		add(c)
	}
	for _, t := range in.Blueprint.AtLocation(in.World.Location) {
		add(Candidate{ID: t.ID, Name: t.Name, Type: TypeBlueprintNPC, Role: t.Role, Location: t.Location, Standing: true})
	}
	return out
}

// match ranks a candidate; span is the word length of an exact phrase match.
type match struct {
	tier int
	span int
}

func (m match) less(o match) bool {
	if m.tier != o.tier {
		return m.tier < o.tier
	}
	return m.span < o.span
}

func score(c Candidate, text string, tokens []string) match {
	name := normalise(c.Name)
	span := 0
	for _, phrase := range []string{name, normalise(c.ID)} {
		if containsPhrase(text, phrase) {
			span = max(span, len(tokenise(phrase)))
		}
	}
	if span > 0 {
		return match{tier: tierExact, span: span}
	}

	words := tokenise(name)
	if role := normalise(c.Role); role != "" {
		words = append(words, tokenise(role)...)
	}

	best := tierNone
	for _, tok := range tokens {
		// Verbs never name a target; "fight" sits close to "knight".
		if isAttackVerb(tok) {
			continue
		}
		tok = singular(tok)
		if !significant(tok) {
			continue
		}
		for _, w := range words {
			if !significant(w) {
				continue
			}
			switch {
			case tok == singular(w):
				return match{tier: tierWord}
			case fuzzyEqual(tok, w):
				best = tierFuzzy
			}
		}
	}
	return match{tier: best}
}

func single(c Candidate) Resolution {
	return Resolution{Status: StatusSingleTarget, Target: &c, TargetID: c.ID, TargetType: c.Type}
}

func clarify(options []Candidate) Resolution {
	if len(options) > maxOptions {
		options = options[:maxOptions]
	}
	return Resolution{
		Status:           StatusNeedsClarification,
		AmbiguousOptions: options,
		Clarification:    clarification(options),
	}
}

// clarification renders a two-sentence question listing options.
func clarification(options []Candidate) string {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = strings.Map(func(r rune) rune {
			if r == '.' || r == '!' || r == '?' {
				return -1
			}
			return r
		}, o.Summary)
	}
	var list string
	switch len(names) {
	case 1:
		list = names[0]
	case 2:
		list = names[0] + " or " + names[1]
	default:
		list = strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
	return fmt.Sprintf("Which target do you mean: %s? Name one so the action can proceed.", list)
}

func summarize(c Candidate) string {
	var detail []string
	switch c.Type {
	case TypeCombatEnemy:
		detail = append(detail, "enemy in this fight")
	case TypeActiveNPC, TypeBlueprintNPC:
		if c.Role != "" {
			detail = append(detail, c.Role)
		}
		if c.Location != "" {
			detail = append(detail, "at "+c.Location)
		}
	}
	if len(detail) == 0 {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, strings.Join(detail, " "))
}

// CountSentences counts terminal punctuation runs in s.
func CountSentences(s string) int {
	n := 0
	prevTerminal := false
	for _, r := range s {
		terminal := r == '.' || r == '!' || r == '?'
		if terminal && !prevTerminal {
			n++
		}
		prevTerminal = terminal
	}
	return n
}
