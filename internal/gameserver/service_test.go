package gameserver_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/plotarmor"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/target"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/gameserver"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/narration"
)

func TestSubmitAction_VictoryRemovesDefeatedAndAwardsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(20)

	req := gameserver.ActionRequest{ActionID: "a1", ActionText: "I attack the Goblin Scout", Location: "Old Road"}
	resp := h.submit(t, req)

	assert.Equal(t, gameserver.KindAttack, resp.Kind)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.TargetResolution)
	assert.Equal(t, target.StatusSingleTarget, resp.TargetResolution.Status)
	assert.Equal(t, "goblin_a", resp.TargetResolution.TargetID)
	require.Len(t, resp.MechanicalSummaries, 1)
	assert.True(t, resp.MechanicalSummaries[0].Critical)
	assert.True(t, resp.MechanicalSummaries[0].TargetKilled)
	assert.True(t, resp.CombatOver)
	assert.Equal(t, combat.OutcomeVictory, resp.Outcome)
	assert.Equal(t, 50, resp.XPGained)
	assert.Contains(t, resp.WorldDelta.RemovedNPCs, "goblin_a")
	require.NotNil(t, resp.Loot)
	assert.Equal(t, 5, resp.Loot.Gold)
	assert.Equal(t, "resolution", resp.Tension.Phase)
	assert.NotEmpty(t, resp.Narration)

	hero := h.character(t)
	assert.Equal(t, 50, hero.XP)
	assert.Equal(t, 5, hero.Gold)
	assert.Contains(t, hero.Inventory, "rusty dagger")

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	_, stillThere := ws.FindNPC("goblin_a")
	assert.False(t, stillThere)
	_, archer := ws.FindNPC("goblin_b")
	assert.True(t, archer)

	sess, err := h.svc.GetCombat(context.Background(), "camp", "hero")
	require.NoError(t, err)
	assert.Nil(t, sess, "a finished combat is no longer active")

	again := h.submit(t, req)
	assert.True(t, again.Replayed)
	assert.Equal(t, 50, again.XPGained)
	assert.Equal(t, 50, h.character(t).XP, "replay must not award experience twice")

	all, err := h.svc.ListCombats(context.Background(), "camp", "hero")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Closed)
	assert.True(t, all[0].XPAwarded)
}

func TestSubmitAction_GenericAttackWithOneEnemy(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(1)

	first := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout", Location: "Old Road"})
	require.True(t, first.Success)
	require.NotNil(t, first.Combat)
	assert.Equal(t, 2, first.Combat.Round)
	assert.Equal(t, "climax", first.Tension.Phase)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I attack"})
	require.NotNil(t, resp.TargetResolution)
	assert.Equal(t, target.StatusSingleTarget, resp.TargetResolution.Status)
	assert.Equal(t, "goblin_a", resp.TargetResolution.TargetID)
	assert.Equal(t, target.TypeCombatEnemy, resp.TargetResolution.TargetType)
	assert.True(t, resp.Success)
	assert.False(t, resp.CombatOver)
	assert.Equal(t, 3, resp.Combat.Round)
}

func TestSubmitAction_AmbiguousTargetAsksForClarification(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the goblin", Location: "Old Road"})

	assert.False(t, resp.Success)
	require.NotNil(t, resp.TargetResolution)
	assert.Equal(t, target.StatusNeedsClarification, resp.TargetResolution.Status)
	assert.Len(t, resp.TargetResolution.AmbiguousOptions, 2)
	assert.Contains(t, resp.Narration, "Which target do you mean")
	assert.Nil(t, resp.Combat)

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	assert.Equal(t, "Old Road", ws.Location, "the scene change still happened")

	sess, err := h.svc.GetCombat(context.Background(), "camp", "hero")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSubmitAction_EscalationAgainstEssentialNPC(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(1)

	var last *gameserver.ActionResponse
	for i := 1; i <= 3; i++ {
		last = h.submit(t, gameserver.ActionRequest{
			ActionID:   fmt.Sprintf("b%d", i),
			ActionText: "I attack the mayor",
			Location:   "Town Square",
		})
		require.NotNil(t, last.PlotArmor, "call %d", i)
		assert.Equal(t, plotarmor.StatusBlocked, last.PlotArmor.Status, "call %d", i)
		assert.Equal(t, i, last.PlotArmor.TransgressionCount, "call %d", i)
		assert.Equal(t, i == 3, last.PlotArmor.ShouldTriggerCombat, "call %d", i)
		assert.Empty(t, last.MechanicalSummaries, "the mayor is never struck")
	}

	require.NotNil(t, last.Combat)
	require.Len(t, last.Combat.Enemies, 1)
	sub := last.Combat.Enemies[0]
	assert.NotEqual(t, "mayor", sub.ID)
	assert.Equal(t, "watchman", sub.TemplateID)

	sess, err := h.svc.GetCombat(context.Background(), "camp", "hero")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, sub.ID, sess.Enemies[0].ID)

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	assert.Equal(t, 3, ws.Transgressions["mayor"].Count)
	assert.True(t, ws.Transgressions["mayor"].Triggered)
	assert.Equal(t, -30, ws.Reputation["hollow_council"])
	_, present := ws.FindNPC(sub.ID)
	assert.True(t, present)

	fourth := h.submit(t, gameserver.ActionRequest{ActionID: "b4", ActionText: "I attack the mayor"})
	require.NotNil(t, fourth.PlotArmor)
	assert.False(t, fourth.PlotArmor.ShouldTriggerCombat)
	assert.Equal(t, "protectors_already_engaged", fourth.PlotArmor.NarrativeHint)
	require.Len(t, fourth.MechanicalSummaries, 1, "the watchman answers the blocked swing")
	assert.Equal(t, sub.ID, fourth.MechanicalSummaries[0].AttackerID)
	assert.Equal(t, 2, fourth.Combat.Round)
}

func TestSubmitAction_BlockedAttackMidFightSpendsTheTurn(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(1)

	opening := h.submit(t, gameserver.ActionRequest{ActionText: "I attack Sly Pell", Location: "Town Square"})
	require.NotNil(t, opening.Combat)
	require.Equal(t, 2, opening.Combat.Round)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I stab the mayor"})

	require.NotNil(t, resp.PlotArmor)
	assert.Equal(t, plotarmor.StatusBlocked, resp.PlotArmor.Status)
	require.Len(t, resp.MechanicalSummaries, 1)
	assert.Equal(t, "informant", resp.MechanicalSummaries[0].AttackerID)
	assert.Equal(t, "hero", resp.MechanicalSummaries[0].TargetID)
	assert.False(t, resp.MechanicalSummaries[0].Hit)
	require.NotNil(t, resp.Combat)
	assert.Equal(t, 3, resp.Combat.Round)

	sess, err := h.svc.GetCombat(context.Background(), "camp", "hero")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 3, sess.Round, "the spent turn is persisted")
}

func TestSubmitAction_ReplayDoesNotCountTwice(t *testing.T) {
	h := newHarness(t, nil)
	req := gameserver.ActionRequest{ActionID: "dup", ActionText: "I attack the mayor", Location: "Town Square"}

	first := h.submit(t, req)
	second := h.submit(t, req)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.PlotArmor.TransgressionCount, second.PlotArmor.TransgressionCount)
	assert.Equal(t, first.Narration, second.Narration)

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Transgressions["mayor"].Count)
	assert.Len(t, ws.RecentActions, 1)
}

func TestSubmitAction_StaleTargetChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.roll(1)
	h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout", Location: "Old Road"})

	h.roll(20)
	second := h.submit(t, gameserver.ActionRequest{ActionText: "I shoot the archer", ExplicitTargetID: "goblin_b"})
	require.True(t, second.Success)
	assert.True(t, second.MechanicalSummaries[0].TargetKilled)
	assert.False(t, second.CombatOver)
	assert.Equal(t, 4, h.character(t).HP, "the scout answers with a critical hit")

	before, err := h.svc.GetCombat(ctx, "camp", "hero")
	require.NoError(t, err)

	h.roll(1)
	stale := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the archer again", ExplicitTargetID: "goblin_b"})
	assert.False(t, stale.Success)
	assert.Contains(t, stale.Error, "already down")
	assert.True(t, stale.CharacterDelta.IsZero())
	assert.True(t, stale.WorldDelta.IsZero())

	after, err := h.svc.GetCombat(ctx, "camp", "hero")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Round, after.Round)
	assert.Equal(t, 4, h.character(t).HP)
}

func TestSubmitAction_PlayerDefeatIsNotFatal(t *testing.T) {
	h := newHarness(t, nil)

	h.roll(1, 20, 4)
	first := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout", Location: "Old Road"})
	assert.Equal(t, -8, first.CharacterDelta.HPChange)

	h.roll(1, 20, 4)
	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout"})

	assert.True(t, resp.CombatOver)
	assert.Equal(t, combat.OutcomePlayerDefeated, resp.Outcome)
	assert.True(t, resp.CharacterDelta.Defeated)

	hero := h.character(t)
	assert.Equal(t, 6, hero.HP, "restored to half of max")
	assert.Equal(t, 1, hero.Injuries)

	sess, err := h.svc.GetCombat(context.Background(), "camp", "hero")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSubmitAction_Flee(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(1)
	h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout", Location: "Old Road"})

	h.roll(20)
	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I flee down the road"})
	assert.Equal(t, gameserver.KindFlee, resp.Kind)
	require.NotNil(t, resp.Flee)
	assert.True(t, resp.Flee.Success)
	assert.Equal(t, combat.OutcomeFled, resp.Outcome)

	all, err := h.svc.ListCombats(context.Background(), "camp", "hero")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, combat.OutcomeFled, all[0].Outcome)
	assert.True(t, all[0].Closed)
}

func TestSubmitAction_PlotSignificantIsKnockedOut(t *testing.T) {
	h := newHarness(t, nil)
	h.roll(20)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I attack Sly Pell", Location: "Town Square"})

	require.NotNil(t, resp.PlotArmor)
	assert.Equal(t, plotarmor.StatusForcedNonLethal, resp.PlotArmor.Status)
	require.NotEmpty(t, resp.MechanicalSummaries)
	hit := resp.MechanicalSummaries[0]
	assert.True(t, hit.TargetUnconscious)
	assert.False(t, hit.TargetKilled)
	assert.Equal(t, 1, hit.TargetHPRemaining)
	assert.Equal(t, combat.OutcomeVictory, resp.Outcome)

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	pell, ok := ws.FindNPC("informant")
	require.True(t, ok, "knocked-out NPCs stay in the scene")
	assert.True(t, pell.Unconscious)
}

func TestSubmitAction_TwoPhaseCheck(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	issued := h.submit(t, gameserver.ActionRequest{ActionText: "I climb the crumbling wall"})
	assert.Equal(t, gameserver.KindSkillCheck, issued.Kind)
	require.NotNil(t, issued.CheckRequest)
	assert.Equal(t, "athletics", issued.CheckRequest.Skill)
	assert.Equal(t, 12, issued.CheckRequest.DC)

	_, err := h.svc.SubmitAction(ctx, gameserver.ActionRequest{
		CampaignID:  "camp",
		CharacterID: "hero",
		CheckResult: &check.Result{CheckID: "wrong", Roll: 15},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gameserver.ErrInvalidRequest)
	assert.ErrorIs(t, err, check.ErrUnknownCheck)

	resolved := h.submit(t, gameserver.ActionRequest{CheckResult: &check.Result{CheckID: issued.CheckRequest.ID, Roll: 15}})
	assert.Equal(t, gameserver.KindCheckResult, resolved.Kind)
	require.NotNil(t, resolved.CheckOutcome)
	assert.Equal(t, 17, resolved.CheckOutcome.Total)
	assert.True(t, resolved.CheckOutcome.Success)

	ws, err := h.store.GetWorldState(ctx, "camp")
	require.NoError(t, err)
	assert.Nil(t, ws.PendingCheck)
}

func TestSubmitAction_IntimidatingEssentialNPCIsNoted(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I threaten the mayor", Location: "Town Square"})

	assert.Equal(t, gameserver.KindSkillCheck, resp.Kind)
	require.NotNil(t, resp.CheckRequest)
	assert.Equal(t, "intimidation", resp.CheckRequest.Skill)
	require.NotNil(t, resp.PlotArmor)
	assert.Equal(t, "hostility_noted", resp.PlotArmor.NarrativeHint)
	assert.Equal(t, 0, resp.PlotArmor.TransgressionCount)
}

func TestSubmitAction_NarrationFailureFallsBack(t *testing.T) {
	failing := narration.NarratorFunc(func(context.Context, narration.Request) (string, error) {
		return "", errors.New("upstream unavailable")
	})
	h := newHarness(t, failing)
	h.roll(20)

	resp := h.submit(t, gameserver.ActionRequest{ActionText: "I attack the Goblin Scout", Location: "Old Road"})

	assert.True(t, resp.NarrationFallback)
	assert.NotEmpty(t, resp.Narration)
	assert.Equal(t, combat.OutcomeVictory, resp.Outcome)
	assert.Equal(t, 50, h.character(t).XP, "mechanics persist regardless of narration")
}

func TestSubmitAction_Validation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SubmitAction(ctx, gameserver.ActionRequest{CampaignID: "nope", CharacterID: "hero", ActionText: "hello"})
	var ve *gameserver.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "campaign", ve.Ref)

	_, err = h.svc.SubmitAction(ctx, gameserver.ActionRequest{CampaignID: "camp", CharacterID: "ghost", ActionText: "hello"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "character", ve.Ref)

	_, err = h.svc.SubmitAction(ctx, gameserver.ActionRequest{CampaignID: "camp", CharacterID: "hero", ActionText: "  "})
	assert.ErrorIs(t, err, gameserver.ErrInvalidRequest)

	_, err = h.svc.CreateCampaign(ctx, gameserver.CreateCampaignRequest{Title: "x", BlueprintID: "missing"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "blueprint", ve.Ref)
}

func TestSubmitAction_NarrativeActionsAreRecorded(t *testing.T) {
	h := newHarness(t, nil)

	first := h.submit(t, gameserver.ActionRequest{ActionText: "I hum a quiet tune"})
	assert.Equal(t, gameserver.KindNarrative, first.Kind)
	assert.True(t, first.Success)
	assert.GreaterOrEqual(t, len(narration.Sentences(first.Narration)), narration.BudgetFor(narration.ModeIntro).Min)
	assert.LessOrEqual(t, len(narration.Sentences(first.Narration)), narration.BudgetFor(narration.ModeIntro).Max)

	second := h.submit(t, gameserver.ActionRequest{ActionText: "I hum a quiet tune"})
	assert.LessOrEqual(t, len(narration.Sentences(second.Narration)), narration.BudgetFor(narration.ModeExploration).Max)
	assert.Equal(t, "calm", second.Tension.Phase)
}

func TestSubmitAction_ConcurrentActionsAreLinearized(t *testing.T) {
	h := newHarness(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.svc.SubmitAction(context.Background(), gameserver.ActionRequest{
				CampaignID:  "camp",
				CharacterID: "hero",
				ActionID:    fmt.Sprintf("c%d", i),
				ActionText:  "I hum a quiet tune",
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	ws, err := h.store.GetWorldState(context.Background(), "camp")
	require.NoError(t, err)
	assert.Len(t, ws.RecentActions, 4)
	assert.EqualValues(t, 4, ws.Version)
}
