package gameserver

import (
	"strings"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/plotarmor"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/target"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/tension"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/narration"
)

// Kind is how an action was classified.
type Kind string

const (
	KindAttack      Kind = "attack"
	KindFlee        Kind = "flee"
	KindSkillCheck  Kind = "skill_check"
	KindCheckResult Kind = "check_result"
	KindNarrative   Kind = "narrative"
)

// ActionRequest is one player action.
type ActionRequest struct {
	CampaignID       string `json:"campaign_id"`
	CharacterID      string `json:"character_id"`
	ActionText       string `json:"action_text"`
	ExplicitTargetID string `json:"explicit_target_id,omitempty"`
	// ActionID identifies the logical action across retries. A redelivered
	// id returns the stored response without re-running the pipeline.
	ActionID    string        `json:"action_id,omitempty"`
	CheckResult *check.Result `json:"check_result,omitempty"`
	// Location moves the scene before the action resolves.
	Location string `json:"location,omitempty"`
}

// Validate checks the request's required fields.
func (r ActionRequest) Validate() error {
	switch {
	case r.CampaignID == "":
		return invalid("campaign_id is required")
	case r.CharacterID == "":
		return invalid("character_id is required")
	case strings.TrimSpace(r.ActionText) == "" && r.CheckResult == nil:
		return invalid("action_text is required")
	}
	return nil
}

// ActionResponse is everything the pipeline decided for one action.
//
// Success is false when nothing happened mechanically: the target was gone,
// ambiguous or unknown. Mechanics in the response are authoritative; the
// narration only restates them.
type ActionResponse struct {
	ActionID            string                     `json:"action_id"`
	Kind                Kind                       `json:"kind"`
	Success             bool                       `json:"success"`
	Error               string                     `json:"error,omitempty"`
	MechanicalSummaries []combat.MechanicalSummary `json:"mechanical_summaries,omitempty"`
	TargetResolution    *target.Resolution         `json:"target_resolution,omitempty"`
	PlotArmor           *plotarmor.Decision        `json:"plot_armor,omitempty"`
	Combat              *combat.Session            `json:"combat_state,omitempty"`
	CombatOver          bool                       `json:"combat_over"`
	Outcome             combat.Outcome             `json:"outcome,omitempty"`
	Flee                *combat.FleeResult         `json:"flee,omitempty"`
	CheckRequest        *check.Request             `json:"check_request,omitempty"`
	CheckOutcome        *check.Outcome             `json:"check_outcome,omitempty"`
	XPGained            int                        `json:"xp_gained,omitempty"`
	Loot                *npc.LootResult            `json:"loot,omitempty"`
	WorldDelta          world.Delta                `json:"world_state_delta"`
	CharacterDelta      character.Delta            `json:"character_state_delta"`
	Tension             world.TensionState         `json:"tension"`
	Pacing              tension.Pacing             `json:"pacing"`
	Narration           string                     `json:"narration"`
	NarrationFallback   bool                       `json:"narration_fallback"`
	Replayed            bool                       `json:"replayed,omitempty"`
}

var fleeWords = []string{"flee", "run away", "run from", "escape", "retreat", "disengage"}

var restWords = []string{"rest", "sleep", "camp", "meditate", "catch my breath"}

var downtimeWords = []string{"shop", "buy", "sell", "craft", "train", "study", "repair"}

var socialWords = []string{"talk", "speak", "ask", "greet", "tell", "chat", "say"}

func containsAny(text string, words []string) bool {
	text = " " + strings.ToLower(text) + " "
	for _, w := range words {
		if strings.Contains(text, " "+w) {
			return true
		}
	}
	return false
}

// classify picks the pipeline branch for req. A submitted roll always
// resolves the pending check; fleeing only means something inside a fight.
func classify(req ActionRequest, sess *combat.Session) Kind {
	switch {
	case req.CheckResult != nil:
		return KindCheckResult
	case sess.IsActive() && containsAny(req.ActionText, fleeWords):
		return KindFlee
	case req.ExplicitTargetID != "" || target.HasAttackVerb(req.ActionText):
		return KindAttack
	}
	if _, _, ok := check.Infer(req.ActionText); ok {
		return KindSkillCheck
	}
	return KindNarrative
}

var socialSkills = map[string]bool{"persuasion": true, "deception": true, "intimidation": true}

// narrationMode selects the sentence budget for the beat.
func narrationMode(t *turn) narration.Mode {
	switch {
	case t.kind == KindAttack && len(t.resp.MechanicalSummaries) > 0,
		t.kind == KindFlee,
		t.sess.IsActive():
		return narration.ModeCombat
	case t.world.Version == 0 && len(t.world.RecentActions) == 0:
		return narration.ModeIntro
	case t.moved:
		return narration.ModeTravel
	case containsAny(t.req.ActionText, restWords):
		return narration.ModeRest
	case containsAny(t.req.ActionText, downtimeWords):
		return narration.ModeDowntime
	case t.resp.PlotArmor != nil,
		t.resp.CheckRequest != nil && socialSkills[t.resp.CheckRequest.Skill],
		containsAny(t.req.ActionText, socialWords):
		return narration.ModeSocial
	}
	return narration.ModeExploration
}
