package gameserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/plotarmor"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/target"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/tension"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

// turn is the working state of one pipeline run. The documents as read are
// kept for their versions; cur, curChar and sess accumulate every delta.
type turn struct {
	req       ActionRequest
	kind      Kind
	now       time.Time
	src       dice.Source
	log       *zap.Logger
	campaign  world.Campaign
	blueprint *npc.Blueprint

	world      world.State
	char       character.State
	readCombat *combat.Session

	cur         world.State
	curChar     character.State
	sess        *combat.Session
	combatDirty bool

	resp          *ActionResponse
	override      tension.Override
	facts         []string
	clarification string
	hostile       bool
	moved         bool
	// scene is the state after any location change, before the action itself.
	scene      world.State
	sceneDelta world.Delta
	// noop marks an action that must leave every document untouched.
	noop bool
}

func (t *turn) applyWorld(d world.Delta) {
	if d.IsZero() {
		return
	}
	t.resp.WorldDelta = t.resp.WorldDelta.Merge(d)
	t.cur = world.Apply(t.cur, d)
}

func (t *turn) applyChar(d character.Delta) {
	if d.IsZero() {
		return
	}
	t.resp.CharacterDelta = t.resp.CharacterDelta.Merge(d)
	t.curChar = character.Apply(t.curChar, d)
}

func (t *turn) fact(format string, args ...any) {
	t.facts = append(t.facts, fmt.Sprintf(format, args...))
}

// fail reports an action that changed nothing beyond a scene change made on
// the way in.
func (t *turn) fail(msg string) {
	t.resp.Success = false
	t.resp.Error = msg
	t.cur = t.scene.Clone()
	t.curChar = t.char.Clone()
	t.sess = t.readCombat.Clone()
	t.combatDirty = false
	t.resp.WorldDelta = t.sceneDelta
	t.resp.CharacterDelta = character.Delta{}
	t.noop = !t.moved
}

// resolve runs the branch selected by classify.
func (s *ActionService) resolve(ctx context.Context, t *turn) error {
	_, span := s.tracer.Start(ctx, "resolve")
	defer span.End()

	if err := s.moveScene(t); err != nil {
		return err
	}
	t.scene = t.cur.Clone()
	t.sceneDelta = t.resp.WorldDelta
	switch t.kind {
	case KindCheckResult:
		return s.resolveCheck(t)
	case KindSkillCheck:
		s.issueCheck(t)
		return nil
	case KindFlee:
		return s.flee(t)
	case KindAttack:
		return s.attack(t)
	}
	return nil
}

// moveScene applies a requested location change: everyone present is left
// behind and the blueprint NPCs of the new location join the scene.
func (s *ActionService) moveScene(t *turn) error {
	loc := t.req.Location
	if loc == "" || loc == t.cur.Location {
		return nil
	}
	if t.sess.IsActive() {
		return invalid("cannot change location during combat")
	}
	d := world.Delta{Location: loc}
	for _, n := range t.cur.ActiveNPCs {
		d.RemovedNPCs = append(d.RemovedNPCs, n.ID)
	}
	for _, tpl := range t.blueprint.AtLocation(loc) {
		d.AddedNPCs = append(d.AddedNPCs, world.ActiveNPC{ID: tpl.ID, Name: tpl.Name, Role: tpl.Role})
	}
	t.applyWorld(d)
	t.moved = true
	return nil
}

func (s *ActionService) issueCheck(t *turn) {
	skill, ability, _ := check.Infer(t.req.ActionText)
	req := check.Issue(skill, ability, s.rules.CheckDC, t.req.ActionText, t.now)
	t.applyWorld(world.Delta{PendingCheck: &req})
	t.resp.CheckRequest = &req
	t.fact("%s must roll a %s check against DC %d.", displayName(t.curChar), skill, req.DC)

	if skill != "intimidation" {
		return
	}
	res := target.Resolve(target.Input{
		ActionText:       t.req.ActionText,
		ExplicitTargetID: t.req.ExplicitTargetID,
		Combat:           t.sess,
		World:            t.cur,
		Blueprint:        t.blueprint,
	})
	if res.Status != target.StatusSingleTarget || res.TargetType == target.TypeCombatEnemy {
		return
	}
	t.resp.TargetResolution = &res
	dec := s.policy.Check(plotarmor.Input{
		NPCID:       res.TargetID,
		NPCName:     res.Target.Name,
		Blueprint:   t.blueprint,
		World:       t.cur,
		Character:   t.curChar,
		ActionType:  string(t.kind),
		ActionID:    t.req.ActionID,
		Description: t.req.ActionText,
	})
	t.resp.PlotArmor = &dec
	t.applyWorld(dec.WorldUpdate)
	t.hostile = true
}

// resolveCheck completes the two-phase check protocol. A roll that does not
// match the pending request is rejected without touching state.
func (s *ActionService) resolveCheck(t *turn) error {
	pending := t.cur.PendingCheck
	modifier := 0
	if pending != nil {
		modifier = t.curChar.Abilities.ModifierFor(pending.Ability)
	}
	out, err := check.Resolve(pending, *t.req.CheckResult, modifier)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	t.applyWorld(world.Delta{ClearCheck: true})
	t.resp.CheckOutcome = &out
	verdict := "fails"
	if out.Success {
		verdict = "succeeds"
	}
	t.fact("The %s check %s with %d against DC %d.", out.Skill, verdict, out.Total, out.DC)
	return nil
}

func (s *ActionService) flee(t *turn) error {
	fr, err := combat.Flee(t.curChar, t.sess, s.rules.FleeDC, t.src)
	if err != nil {
		return fmt.Errorf("fleeing: %w", err)
	}
	t.resp.Flee = &fr
	t.combatDirty = true
	t.hostile = true
	if fr.Success {
		t.fact("%s escapes the fight.", displayName(t.curChar))
		t.override = tension.OverrideResolution
		return nil
	}
	t.fact("%s fails to break away.", displayName(t.curChar))
	return s.enemyTurns(t)
}

func (s *ActionService) attack(t *turn) error {
	t.hostile = true
	res := target.Resolve(target.Input{
		ActionText:       t.req.ActionText,
		ExplicitTargetID: t.req.ExplicitTargetID,
		Combat:           t.sess,
		World:            t.cur,
		Blueprint:        t.blueprint,
	})
	t.resp.TargetResolution = &res
	switch res.Status {
	case target.StatusNeedsClarification:
		t.clarification = res.Clarification
		t.fail("")
		return nil
	case target.StatusNoTargetFound:
		t.fail("no target matches the action")
		return nil
	}
	if res.TargetType == target.TypeCombatEnemy {
		return s.strike(t, res.TargetID, false)
	}
	return s.engage(t, res)
}

// engage attacks an NPC that is not yet fighting, subject to plot armor.
func (s *ActionService) engage(t *turn, res target.Resolution) error {
	if n, ok := t.cur.FindNPC(res.TargetID); ok && n.Unconscious {
		t.fail(fmt.Sprintf("target %q is already down", res.TargetID))
		return nil
	}
	dec := s.policy.Check(plotarmor.Input{
		NPCID:       res.TargetID,
		NPCName:     res.Target.Name,
		Blueprint:   t.blueprint,
		World:       t.cur,
		Character:   t.curChar,
		ActionType:  string(t.kind),
		ActionID:    t.req.ActionID,
		Description: t.req.ActionText,
		Violent:     true,
	})
	t.resp.PlotArmor = &dec
	t.applyWorld(dec.WorldUpdate)
	t.applyChar(dec.CharacterUpdate)
	if dec.StageDirection != "" {
		t.facts = append(t.facts, dec.StageDirection)
	}

	switch dec.Status {
	case plotarmor.StatusBlocked:
		// A blocked swing mid-fight still spends the player's turn.
		fighting := t.sess.IsActive()
		if dec.ShouldTriggerCombat && len(dec.Substitutes) > 0 {
			if err := s.join(t, dec.Substitutes); err != nil {
				return err
			}
		}
		if fighting {
			return s.enemyTurns(t)
		}
		return nil
	default:
		enemy := s.enemyFor(t, res)
		if err := s.join(t, []combat.Combatant{enemy}); err != nil {
			return err
		}
		return s.strike(t, enemy.ID, dec.Status == plotarmor.StatusForcedNonLethal)
	}
}

// enemyFor builds the combatant for an NPC from its blueprint template, or
// improvises one.
func (s *ActionService) enemyFor(t *turn, res target.Resolution) combat.Combatant {
	templateID := res.TargetID
	if n, ok := t.cur.FindNPC(res.TargetID); ok && n.TemplateID != "" {
		templateID = n.TemplateID
	}
	if tpl := t.blueprint.Get(templateID); tpl != nil {
		return combat.EnemyFromTemplate(tpl, res.TargetID)
	}
	return combat.ImprovisedEnemy(res.TargetID, res.Target.Name)
}

// join starts a combat against enemies or adds them to the running one, and
// makes sure every enemy is present in the scene.
func (s *ActionService) join(t *turn, enemies []combat.Combatant) error {
	if t.sess.IsActive() {
		if err := t.sess.AddEnemies(enemies...); err != nil {
			return fmt.Errorf("adding enemies: %w", err)
		}
	} else {
		sess, err := combat.NewSession(t.req.CampaignID, t.req.CharacterID, enemies, t.now)
		if err != nil {
			return fmt.Errorf("starting combat: %w", err)
		}
		t.sess = sess
		t.log.Info("combat started", zap.String("combat_id", sess.CombatID), zap.Int("enemies", len(enemies)))
	}
	t.combatDirty = true

	var d world.Delta
	for _, e := range enemies {
		if _, ok := t.cur.FindNPC(e.ID); !ok {
			d.AddedNPCs = append(d.AddedNPCs, world.ActiveNPC{ID: e.ID, Name: e.Name, TemplateID: e.TemplateID})
		}
	}
	t.applyWorld(d)
	return nil
}

// strike resolves the player's attack and, while the fight goes on, the
// enemies' answer. A stale target reports failure and changes nothing.
func (s *ActionService) strike(t *turn, targetID string, nonLethal bool) error {
	r := combat.ProcessPlayerAttack(t.curChar, t.sess, targetID, t.src, nonLethal)
	t.resp.MechanicalSummaries = append(t.resp.MechanicalSummaries, r.Summary)
	if !r.Success {
		t.fail(r.Error)
		return nil
	}
	t.combatDirty = true
	t.recordCasualty(r.Summary)
	t.resp.XPGained += r.XPGained
	if r.CombatOver {
		s.endCombat(t)
		return nil
	}
	return s.enemyTurns(t)
}

func (s *ActionService) enemyTurns(t *turn) error {
	et, err := combat.ProcessEnemyTurns(t.curChar, t.sess, t.src)
	if err != nil {
		return fmt.Errorf("enemy turns: %w", err)
	}
	t.combatDirty = true
	t.resp.MechanicalSummaries = append(t.resp.MechanicalSummaries, et.Attacks...)
	t.applyChar(character.Delta{HPChange: et.PlayerHPRemaining - t.curChar.HP})
	if et.CombatOver {
		s.endCombat(t)
	}
	return nil
}

func (t *turn) recordCasualty(m combat.MechanicalSummary) {
	switch {
	case m.TargetKilled:
		t.applyWorld(world.Delta{RemovedNPCs: []string{m.TargetID}})
	case m.TargetUnconscious:
		t.applyWorld(world.Delta{UnconsciousNPCs: []string{m.TargetID}})
	}
}

// endCombat applies the consequences of a finished session.
func (s *ActionService) endCombat(t *turn) {
	t.override = tension.OverrideResolution
	switch t.sess.Outcome {
	case combat.OutcomeVictory:
		t.applyChar(character.AwardXP(t.curChar, t.resp.XPGained))
		if loot := s.loot(t); loot.Gold > 0 || len(loot.Items) > 0 {
			t.resp.Loot = &loot
			t.applyChar(character.Delta{GoldChange: loot.Gold, ItemsAdded: loot.Items})
		}
		t.fact("%s stands victorious.", displayName(t.curChar))
	case combat.OutcomePlayerDefeated:
		t.applyChar(character.DefeatPenalty(t.curChar, s.rules.DefeatHealPercent, s.rules.DefeatXPPenaltyPercent))
		t.fact("%s falls but survives, carried from the field with fresh injuries.", displayName(t.curChar))
	}
	t.log.Info("combat ended",
		zap.String("combat_id", t.sess.CombatID),
		zap.String("outcome", string(t.sess.Outcome)),
		zap.Int("round", t.sess.Round),
	)
}

// loot rolls the loot tables of every defeated enemy built from a template.
func (s *ActionService) loot(t *turn) npc.LootResult {
	var out npc.LootResult
	for _, e := range t.sess.Enemies {
		if e.CanAct() {
			continue
		}
		tpl := t.blueprint.Get(e.TemplateID)
		if tpl == nil || tpl.Loot == nil {
			continue
		}
		r := npc.GenerateLoot(tpl.Loot, t.src)
		out.Gold += r.Gold
		out.Items = append(out.Items, r.Items...)
	}
	return out
}

func displayName(c character.State) string {
	if c.Name == "" {
		return "The hero"
	}
	return c.Name
}
