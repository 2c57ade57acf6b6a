// Package check implements the two-phase ability check protocol: the server
// issues a Request, the client rolls, and a later call resolves the roll.
// Nothing but the persisted Request survives between the two calls.
package check

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoPendingCheck is returned when a roll arrives with no outstanding request.
	ErrNoPendingCheck = errors.New("no pending ability check")
	// ErrUnknownCheck is returned when the roll names a different request.
	ErrUnknownCheck = errors.New("check id does not match the pending request")
	// ErrInvalidRoll is returned for natural rolls outside 1..20.
	ErrInvalidRoll = errors.New("natural roll must be between 1 and 20")
)

// Request is an outstanding ability check awaiting the player's roll.
type Request struct {
	ID       string    `json:"id"`
	Skill    string    `json:"skill"`
	Ability  string    `json:"ability"`
	DC       int       `json:"dc"`
	Reason   string    `json:"reason"`
	IssuedAt time.Time `json:"issued_at"`
}

// Result is the player's submitted roll.
type Result struct {
	CheckID string `json:"check_id"`
	Roll    int    `json:"roll"`
}

// Outcome is a resolved ability check.
type Outcome struct {
	CheckID         string `json:"check_id"`
	Skill           string `json:"skill"`
	Natural         int    `json:"natural"`
	Modifier        int    `json:"modifier"`
	Total           int    `json:"total"`
	DC              int    `json:"dc"`
	Success         bool   `json:"success"`
	CriticalSuccess bool   `json:"critical_success,omitempty"`
	CriticalFailure bool   `json:"critical_failure,omitempty"`
}

// skill is a check keyword family and the ability it draws on.
type skill struct {
	name     string
	ability  string
	keywords []string
}

var skills = []skill{
	{"athletics", "strength", []string{"climb", "jump", "swim", "lift", "force open", "break down"}},
	{"stealth", "dexterity", []string{"sneak", "hide", "creep", "tiptoe"}},
	{"sleight_of_hand", "dexterity", []string{"pickpocket", "pick the lock", "pick lock", "steal"}},
	{"persuasion", "charisma", []string{"persuade", "convince", "negotiate", "bargain"}},
	{"deception", "charisma", []string{"lie", "bluff", "deceive", "disguise"}},
	{"intimidation", "charisma", []string{"intimidate", "threaten", "scare"}},
	{"investigation", "intelligence", []string{"search", "investigate", "examine", "inspect"}},
	{"perception", "wisdom", []string{"listen", "look around", "scan", "notice", "spot"}},
}

// Infer returns the skill and ability an action calls for, or ok=false when
// the action needs no check.
func Infer(actionText string) (skillName, ability string, ok bool) {
	text := " " + strings.ToLower(actionText) + " "
	for _, s := range skills {
		for _, kw := range s.keywords {
			if strings.Contains(text, " "+kw) {
				return s.name, s.ability, true
			}
		}
	}
	return "", "", false
}

// Issue creates a new Request.
//
// Precondition: dc >= 1.
func Issue(skillName, ability string, dc int, reason string, now time.Time) Request {
	return Request{
		ID:       uuid.NewString(),
		Skill:    skillName,
		Ability:  ability,
		DC:       dc,
		Reason:   reason,
		IssuedAt: now.UTC(),
	}
}

// Resolve resolves res against the pending request. A natural 20 always
// succeeds and a natural 1 always fails.
//
// Postcondition: Outcome.Total == res.Roll + modifier.
func Resolve(pending *Request, res Result, modifier int) (Outcome, error) {
	if pending == nil {
		return Outcome{}, ErrNoPendingCheck
	}
	if res.CheckID != pending.ID {
		return Outcome{}, fmt.Errorf("%w: got %q", ErrUnknownCheck, res.CheckID)
	}
	if res.Roll < 1 || res.Roll > 20 {
		return Outcome{}, fmt.Errorf("%w: got %d", ErrInvalidRoll, res.Roll)
	}
	total := res.Roll + modifier
	out := Outcome{
		CheckID:         pending.ID,
		Skill:           pending.Skill,
		Natural:         res.Roll,
		Modifier:        modifier,
		Total:           total,
		DC:              pending.DC,
		CriticalSuccess: res.Roll == 20,
		CriticalFailure: res.Roll == 1,
	}
	out.Success = !out.CriticalFailure && (out.CriticalSuccess || total >= pending.DC)
	return out, nil
}
