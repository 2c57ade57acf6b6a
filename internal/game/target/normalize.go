package target

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// stopWords never identify a target on their own.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true, "to": true, "at": true,
	"with": true, "my": true, "his": true, "her": true, "their": true, "its": true,
	"i": true, "me": true, "on": true, "in": true, "sir": true, "lady": true, "lord": true,
	"old": true, "young": true,
}

// attackVerbs mark an action as a generic hostile act.
var attackVerbs = map[string]bool{
	"attack": true, "hit": true, "strike": true, "stab": true, "slash": true, "shoot": true,
	"punch": true, "kick": true, "kill": true, "fight": true, "swing": true, "smite": true,
	"cut": true, "charge": true, "bash": true, "fire": true, "lunge": true, "slay": true,
}

// normalise lowercases raw and collapses everything but letters and digits into single spaces.
func normalise(raw string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenise(normalised string) []string {
	return strings.Fields(normalised)
}

// singular strips a plural "s" so "goblins" matches "goblin".
func singular(token string) string {
	if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
		return token[:len(token)-1]
	}
	return token
}

func significant(token string) bool {
	return len(token) >= 3 && !stopWords[token]
}

// levenshteinLimit scales the allowed edit distance with word length.
func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

func fuzzyEqual(token, word string) bool {
	if len(token) < 4 || len(word) < 4 {
		return false
	}
	return levenshtein.ComputeDistance(token, word) <= levenshteinLimit(len(word))
}

// HasAttackVerb reports whether text contains a generic attack verb.
func HasAttackVerb(text string) bool {
	for _, tok := range tokenise(normalise(text)) {
		if isAttackVerb(tok) {
			return true
		}
	}
	return false
}

func isAttackVerb(tok string) bool {
	return attackVerbs[tok] || attackVerbs[strings.TrimSuffix(tok, "s")]
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
