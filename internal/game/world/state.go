// Package world defines the versioned per-campaign world state and the deltas
// that pipeline stages return instead of mutating it.
package world

import (
	"slices"
	"time"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
)

// MaxRecentActions bounds the action history retained on the world state.
const MaxRecentActions = 10

// Campaign ties a play-through to its world blueprint.
type Campaign struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	BlueprintID string    `json:"blueprint_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActiveNPC is an NPC currently present in the scene.
type ActiveNPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Unconscious bool   `json:"unconscious,omitempty"`
	// TemplateID names the blueprint template the NPC was spawned from when
	// it differs from ID.
	TemplateID string `json:"template_id,omitempty"`
}

// ActionRecord summarises one processed player action for pacing.
type ActionRecord struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Text    string    `json:"text"`
	Hostile bool      `json:"hostile"`
	At      time.Time `json:"at"`
}

// TensionState is the last computed scene intensity.
//
// Invariant: 0 <= Score <= 100.
type TensionState struct {
	Score     int       `json:"score"`
	Phase     string    `json:"phase"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the per-campaign world state. It is passed by value through the
// pipeline; stages return a Delta and only Apply produces a new State.
type State struct {
	CampaignID     string                       `json:"campaign_id"`
	Location       string                       `json:"location"`
	ActiveNPCs     []ActiveNPC                  `json:"active_npcs"`
	Transgressions map[string]escalation.Record `json:"transgressions"`
	Reputation     map[string]int               `json:"reputation"`
	Tension        TensionState                 `json:"tension"`
	PendingCheck   *check.Request               `json:"pending_check,omitempty"`
	RecentActions  []ActionRecord               `json:"recent_actions"`
	Version        int64                        `json:"version"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// New returns an empty world state for campaignID.
func New(campaignID, location string) State {
	return State{
		CampaignID:     campaignID,
		Location:       location,
		ActiveNPCs:     []ActiveNPC{},
		Transgressions: map[string]escalation.Record{},
		Reputation:     map[string]int{},
		RecentActions:  []ActionRecord{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.ActiveNPCs = slices.Clone(s.ActiveNPCs)
	out.RecentActions = slices.Clone(s.RecentActions)
	out.Transgressions = make(map[string]escalation.Record, len(s.Transgressions))
	for k, v := range s.Transgressions {
		out.Transgressions[k] = v.Clone()
	}
	out.Reputation = make(map[string]int, len(s.Reputation))
	for k, v := range s.Reputation {
		out.Reputation[k] = v
	}
	if s.PendingCheck != nil {
		pc := *s.PendingCheck
		out.PendingCheck = &pc
	}
	return out
}

// Transgression returns the record for targetID, zero-valued when none exists.
func (s State) Transgression(targetID string) escalation.Record {
	if r, ok := s.Transgressions[targetID]; ok {
		return r
	}
	return escalation.Record{TargetID: targetID}
}

// FindNPC returns the active NPC with id.
func (s State) FindNPC(id string) (ActiveNPC, bool) {
	for _, n := range s.ActiveNPCs {
		if n.ID == id {
			return n, true
		}
	}
	return ActiveNPC{}, false
}

// OpenTransgressions sums transgression counts on targets whose escalation has
// not yet been triggered.
func (s State) OpenTransgressions() int {
	total := 0
	for _, r := range s.Transgressions {
		if !r.Triggered {
			total += r.Count
		}
	}
	return total
}

// Recent returns at most n of the most recent actions, oldest first.
func (s State) Recent(n int) []ActionRecord {
	if n <= 0 || len(s.RecentActions) == 0 {
		return nil
	}
	if n > len(s.RecentActions) {
		n = len(s.RecentActions)
	}
	return slices.Clone(s.RecentActions[len(s.RecentActions)-n:])
}
