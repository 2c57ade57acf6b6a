package world

import (
	"maps"
	"slices"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
)

// Delta is a change to the world state produced by one pipeline stage.
type Delta struct {
	// Location moves the scene when non-empty.
	Location        string                       `json:"location,omitempty"`
	AddedNPCs       []ActiveNPC                  `json:"added_npcs,omitempty"`
	RemovedNPCs     []string                     `json:"removed_npcs,omitempty"`
	UnconsciousNPCs []string                     `json:"unconscious_npcs,omitempty"`
	Transgressions  map[string]escalation.Record `json:"transgressions,omitempty"`
	Reputation      map[string]int               `json:"reputation,omitempty"`
	Tension         *TensionState                `json:"tension,omitempty"`
	PendingCheck    *check.Request               `json:"pending_check,omitempty"`
	ClearCheck      bool                         `json:"clear_check,omitempty"`
	Action          *ActionRecord                `json:"action,omitempty"`
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return d.Location == "" && len(d.AddedNPCs) == 0 && len(d.RemovedNPCs) == 0 && len(d.UnconsciousNPCs) == 0 &&
		len(d.Transgressions) == 0 && len(d.Reputation) == 0 && d.Tension == nil &&
		d.PendingCheck == nil && !d.ClearCheck && d.Action == nil
}

// Merge combines d and o; o is applied after d. An NPC added by d and
// removed by o is dropped from AddedNPCs.
func (d Delta) Merge(o Delta) Delta {
	out := Delta{
		Location: d.Location,
		AddedNPCs: append(slices.DeleteFunc(slices.Clone(d.AddedNPCs), func(n ActiveNPC) bool {
			return slices.Contains(o.RemovedNPCs, n.ID)
		}), o.AddedNPCs...),
		RemovedNPCs:     append(slices.Clone(d.RemovedNPCs), o.RemovedNPCs...),
		UnconsciousNPCs: append(slices.Clone(d.UnconsciousNPCs), o.UnconsciousNPCs...),
		Tension:         d.Tension,
		PendingCheck:    d.PendingCheck,
		ClearCheck:      d.ClearCheck,
		Action:          d.Action,
	}
	if len(d.Transgressions)+len(o.Transgressions) > 0 {
		out.Transgressions = maps.Clone(d.Transgressions)
		if out.Transgressions == nil {
			out.Transgressions = map[string]escalation.Record{}
		}
		maps.Copy(out.Transgressions, o.Transgressions)
	}
	if len(d.Reputation)+len(o.Reputation) > 0 {
		out.Reputation = map[string]int{}
		for k, v := range d.Reputation {
			out.Reputation[k] += v
		}
		for k, v := range o.Reputation {
			out.Reputation[k] += v
		}
	}
	if o.Location != "" {
		out.Location = o.Location
	}
	if o.Tension != nil {
		out.Tension = o.Tension
	}
	if o.ClearCheck {
		out.PendingCheck, out.ClearCheck = nil, true
	}
	if o.PendingCheck != nil {
		out.PendingCheck = o.PendingCheck
	}
	if o.Action != nil {
		out.Action = o.Action
	}
	if len(out.AddedNPCs) == 0 {
		out.AddedNPCs = nil
	}
	if len(out.RemovedNPCs) == 0 {
		out.RemovedNPCs = nil
	}
	if len(out.UnconsciousNPCs) == 0 {
		out.UnconsciousNPCs = nil
	}
	return out
}

// Apply returns a copy of s with d applied. s is not modified.
//
// Postcondition: transgression counts never decrease; an incoming record with a
// lower count than the stored one is ignored. RecentActions holds at most
// MaxRecentActions entries. Version is left for the persistence layer.
func Apply(s State, d Delta) State {
	out := s.Clone()

	if d.Location != "" {
		out.Location = d.Location
	}
	if len(d.RemovedNPCs) > 0 {
		out.ActiveNPCs = slices.DeleteFunc(out.ActiveNPCs, func(n ActiveNPC) bool {
			return slices.Contains(d.RemovedNPCs, n.ID)
		})
	}
	for _, n := range d.AddedNPCs {
		if _, exists := out.FindNPC(n.ID); !exists {
			out.ActiveNPCs = append(out.ActiveNPCs, n)
		}
	}
	for i := range out.ActiveNPCs {
		if slices.Contains(d.UnconsciousNPCs, out.ActiveNPCs[i].ID) {
			out.ActiveNPCs[i].Unconscious = true
		}
	}

	for id, rec := range d.Transgressions {
		if cur, ok := out.Transgressions[id]; ok && rec.Count < cur.Count {
			continue
		}
		out.Transgressions[id] = rec.Clone()
	}
	for k, v := range d.Reputation {
		out.Reputation[k] += v
	}

	if d.Tension != nil {
		out.Tension = *d.Tension
	}
	if d.ClearCheck {
		out.PendingCheck = nil
	}
	if d.PendingCheck != nil {
		pc := *d.PendingCheck
		out.PendingCheck = &pc
	}
	if d.Action != nil {
		out.RecentActions = append(out.RecentActions, *d.Action)
		if over := len(out.RecentActions) - MaxRecentActions; over > 0 {
			out.RecentActions = out.RecentActions[over:]
		}
	}
	return out
}
