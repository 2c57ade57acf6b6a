// Package plotarmor decides whether a hostile action against an NPC may
// proceed, must be non-lethal, or is blocked, and escalates repeated
// aggression against protected NPCs into a substitute encounter.
package plotarmor

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

// Status is the policy verdict.
type Status string

const (
	StatusBlocked         Status = "blocked"
	StatusForcedNonLethal Status = "forced_non_lethal"
	StatusAllowed         Status = "allowed"
)

// Consequence tags reported alongside a verdict.
const (
	ConsequenceTransgression = "transgression_recorded"
	ConsequenceReputation    = "reputation_lowered"
	ConsequenceProtectors    = "protectors_summoned"
	ConsequenceNonLethal     = "lethal_blows_knock_out"
)

// DefaultReputationPenalty is subtracted from the NPC's standing per transgression.
const DefaultReputationPenalty = 10

// substituteNamespace seeds deterministic substitute ids for a given action.
var substituteNamespace = uuid.MustParse("6f1c2b0e-3d4a-4f5e-9a7b-8c9d0e1f2a3b")

// Input is one hostile or social action aimed at an NPC.
type Input struct {
	NPCID       string
	NPCName     string
	Blueprint   *npc.Blueprint
	World       world.State
	Character   character.State
	ActionType  string
	ActionID    string
	Description string
	Violent     bool
}

// Decision is the policy outcome. It never carries numeric mechanics or dialogue.
type Decision struct {
	Status              Status             `json:"status"`
	Protection          npc.Protection     `json:"protection"`
	NarrativeHint       string             `json:"narrative_hint"`
	StageDirection      string             `json:"stage_direction,omitempty"`
	Consequences        []string           `json:"consequences,omitempty"`
	WorldUpdate         world.Delta        `json:"world_update"`
	CharacterUpdate     character.Delta    `json:"character_update"`
	ShouldTriggerCombat bool               `json:"should_trigger_combat"`
	TransgressionCount  int                `json:"transgression_count"`
	Substitutes         []combat.Combatant `json:"substitutes,omitempty"`
}

// Policy applies plot armor using an escalation tracker.
type Policy struct {
	Tracker           escalation.Tracker
	ReputationPenalty int
}

// NewPolicy returns a Policy escalating after threshold transgressions.
func NewPolicy(threshold int) Policy {
	return Policy{Tracker: escalation.NewTracker(threshold), ReputationPenalty: DefaultReputationPenalty}
}

// Check evaluates in. Non-violent hostility toward an essential NPC is noted
// on its transgression record without raising the count.
//
// Precondition: in.NPCID is non-empty.
// Postcondition: an essential NPC is never returned as allowed for a violent
// action; Substitutes is non-empty only when ShouldTriggerCombat is true and
// never contains the protected NPC.
func (p Policy) Check(in Input) Decision {
	t := in.Blueprint.Get(in.NPCID)
	protection := npc.ProtectionNone
	if t != nil {
		protection = t.Protection
	}
	name := in.NPCName
	if name == "" && t != nil {
		name = t.Name
	}

	if !in.Violent {
		d := Decision{Status: StatusAllowed, Protection: protection, NarrativeHint: "action_permitted"}
		if protection == npc.ProtectionEssential {
			res, rec := p.Tracker.Track(in.World.Transgression(in.NPCID), escalation.Input{
				TargetID:    in.NPCID,
				ActionID:    in.ActionID,
				ActionType:  in.ActionType,
				Description: in.Description,
			})
			d.NarrativeHint = res.NarrativeHint
			d.TransgressionCount = res.UpdatedCount
			d.WorldUpdate.Transgressions = map[string]escalation.Record{in.NPCID: rec}
		}
		return d
	}

	switch protection {
	case npc.ProtectionEssential:
		return p.blocked(in, t, name)
	case npc.ProtectionPlotSignificant:
		return Decision{
			Status:         StatusForcedNonLethal,
			Protection:     protection,
			NarrativeHint:  "target_will_be_spared",
			StageDirection: fmt.Sprintf("%s can be beaten down but will not die here.", name),
			Consequences:   []string{ConsequenceNonLethal},
		}
	default:
		return Decision{Status: StatusAllowed, Protection: protection, NarrativeHint: "action_permitted"}
	}
}

func (p Policy) blocked(in Input, t *npc.Template, name string) Decision {
	res, rec := p.Tracker.Track(in.World.Transgression(in.NPCID), escalation.Input{
		TargetID:    in.NPCID,
		ActionID:    in.ActionID,
		ActionType:  in.ActionType,
		Description: in.Description,
		Violent:     true,
	})

	d := Decision{
		Status:              StatusBlocked,
		Protection:          npc.ProtectionEssential,
		NarrativeHint:       res.NarrativeHint,
		ShouldTriggerCombat: res.ShouldTriggerCombat,
		TransgressionCount:  res.UpdatedCount,
		WorldUpdate: world.Delta{
			Transgressions: map[string]escalation.Record{in.NPCID: rec},
		},
	}
	if res.Duplicate {
		d.StageDirection = fmt.Sprintf("The moment against %s has already passed.", name)
		return d
	}

	d.Consequences = []string{ConsequenceTransgression, ConsequenceReputation}
	d.WorldUpdate.Reputation = map[string]int{standingKey(t, in.NPCID): -p.ReputationPenalty}

	if !res.ShouldTriggerCombat {
		d.StageDirection = fmt.Sprintf("Someone intervenes before %s can harm %s.", actorName(in.Character), name)
		return d
	}

	d.Consequences = append(d.Consequences, ConsequenceProtectors)
	d.StageDirection = fmt.Sprintf("Protectors of %s step in and draw steel.", name)
	for i, pt := range in.Blueprint.ProtectorsOf(t) {
		id := substituteID(pt.ID, in.ActionID, i)
		d.Substitutes = append(d.Substitutes, combat.EnemyFromTemplate(pt, id))
		d.WorldUpdate.AddedNPCs = append(d.WorldUpdate.AddedNPCs, world.ActiveNPC{ID: id, Name: pt.Name, Role: pt.Role, TemplateID: pt.ID})
	}
	return d
}

func actorName(c character.State) string {
	if c.Name == "" {
		return "the attacker"
	}
	return c.Name
}

// standingKey is the reputation bucket a transgression counts against.
func standingKey(t *npc.Template, npcID string) string {
	if t != nil && t.Faction != "" {
		return t.Faction
	}
	return npcID
}

// substituteID derives a stable id when the action id is known so retries
// produce the same encounter.
func substituteID(templateID, actionID string, index int) string {
	var u uuid.UUID
	if actionID != "" {
		u = uuid.NewSHA1(substituteNamespace, []byte(actionID+"/"+strconv.Itoa(index)))
	} else {
		u = uuid.New()
	}
	return templateID + "_" + u.String()[:8]
}
