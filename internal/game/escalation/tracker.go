// Package escalation accumulates per-target transgressions within a campaign
// and signals, exactly once, when protection should yield to a hostile response.
package escalation

import "slices"

// Severity grades one recorded transgression.
type Severity string

const (
	SeverityMinor  Severity = "minor"
	SeverityMajor  Severity = "major"
	SeveritySevere Severity = "severe"
)

// DefaultThreshold is the transgression count that triggers a substitute encounter.
const DefaultThreshold = 3

// maxRememberedActions bounds the action ids kept per record for duplicate detection.
const maxRememberedActions = 32

// Record is the accumulated history of hostile acts against one target.
//
// Invariant: Count never decreases; once Triggered is set it stays set.
type Record struct {
	TargetID        string     `json:"target_id"`
	Count           int        `json:"count"`
	SeverityHistory []Severity `json:"severity_history"`
	LastActionType  string     `json:"last_action_type"`
	LastDescription string     `json:"last_description,omitempty"`
	Triggered       bool       `json:"triggered"`
	ActionIDs       []string   `json:"action_ids,omitempty"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.SeverityHistory = slices.Clone(r.SeverityHistory)
	r.ActionIDs = slices.Clone(r.ActionIDs)
	return r
}

// Seen reports whether actionID was already counted in r.
func (r Record) Seen(actionID string) bool {
	return actionID != "" && slices.Contains(r.ActionIDs, actionID)
}

// Input describes one candidate transgression.
type Input struct {
	TargetID    string
	ActionID    string
	ActionType  string
	Description string
	// Severity overrides the count-derived grade when non-empty.
	Severity Severity
	Violent  bool
}

// Result is the outcome of tracking one action.
type Result struct {
	UpdatedCount        int      `json:"updated_count"`
	ShouldTriggerCombat bool     `json:"should_trigger_combat"`
	Severity            Severity `json:"severity,omitempty"`
	NarrativeHint       string   `json:"narrative_hint"`
	// Duplicate is set when the action id had already been counted.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Tracker applies the escalation rule with a fixed threshold.
type Tracker struct {
	Threshold int
}

// NewTracker returns a Tracker; thresholds below 1 fall back to DefaultThreshold.
func NewTracker(threshold int) Tracker {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return Tracker{Threshold: threshold}
}

// Track records in against prev and returns the result together with the updated record.
// prev is never mutated.
//
// Postcondition: next.Count >= prev.Count. ShouldTriggerCombat is true only when
// next.Count reaches the threshold while prev.Triggered is false. Replaying an
// action id already in prev changes nothing and never triggers.
func (t Tracker) Track(prev Record, in Input) (Result, Record) {
	next := prev.Clone()
	next.TargetID = in.TargetID

	if prev.Seen(in.ActionID) {
		return Result{
			UpdatedCount:  prev.Count,
			NarrativeHint: hintFor(t.gradeOf(prev.Count), prev.Triggered),
			Duplicate:     true,
		}, next
	}

	next.LastActionType = in.ActionType
	next.LastDescription = in.Description
	if in.ActionID != "" {
		next.ActionIDs = append(next.ActionIDs, in.ActionID)
		if over := len(next.ActionIDs) - maxRememberedActions; over > 0 {
			next.ActionIDs = next.ActionIDs[over:]
		}
	}

	if !in.Violent {
		return Result{UpdatedCount: next.Count, NarrativeHint: "hostility_noted"}, next
	}

	next.Count++
	severity := in.Severity
	if severity == "" {
		severity = t.gradeOf(next.Count)
	}
	next.SeverityHistory = append(next.SeverityHistory, severity)

	trigger := next.Count >= t.Threshold && !prev.Triggered
	if trigger {
		next.Triggered = true
	}
	return Result{
		UpdatedCount:        next.Count,
		ShouldTriggerCombat: trigger,
		Severity:            severity,
		NarrativeHint:       hintFor(severity, next.Triggered && !trigger),
	}, next
}

func (t Tracker) gradeOf(count int) Severity {
	switch {
	case count < t.Threshold:
		return SeverityMinor
	case count == t.Threshold:
		return SeverityMajor
	default:
		return SeveritySevere
	}
}

func hintFor(s Severity, alreadyEscalated bool) string {
	switch {
	case alreadyEscalated:
		return "protectors_already_engaged"
	case s == SeverityMinor:
		return "intervention_prevents_harm"
	default:
		return "protectors_respond_with_force"
	}
}
