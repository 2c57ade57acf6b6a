package escalation_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
)

func violent(id string) escalation.Input {
	return escalation.Input{TargetID: "mayor", ActionID: id, ActionType: "attack", Description: "swings at the mayor", Violent: true}
}

func TestTrack_EdgeTriggersOnceAtThreshold(t *testing.T) {
	tr := escalation.NewTracker(3)
	var rec escalation.Record

	var results []escalation.Result
	for i := 1; i <= 5; i++ {
		var res escalation.Result
		res, rec = tr.Track(rec, violent(fmt.Sprintf("a%d", i)))
		results = append(results, res)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, []int{
		results[0].UpdatedCount, results[1].UpdatedCount, results[2].UpdatedCount,
		results[3].UpdatedCount, results[4].UpdatedCount,
	})
	assert.False(t, results[0].ShouldTriggerCombat)
	assert.False(t, results[1].ShouldTriggerCombat)
	assert.True(t, results[2].ShouldTriggerCombat)
	assert.False(t, results[3].ShouldTriggerCombat)
	assert.False(t, results[4].ShouldTriggerCombat)

	assert.Equal(t, []escalation.Severity{
		escalation.SeverityMinor, escalation.SeverityMinor, escalation.SeverityMajor,
		escalation.SeveritySevere, escalation.SeveritySevere,
	}, rec.SeverityHistory)
	assert.True(t, rec.Triggered)
	assert.Equal(t, "protectors_already_engaged", results[3].NarrativeHint)
	assert.Equal(t, "intervention_prevents_harm", results[0].NarrativeHint)
}

func TestTrack_DuplicateActionIsIdempotent(t *testing.T) {
	tr := escalation.NewTracker(2)
	_, rec := tr.Track(escalation.Record{}, violent("a1"))
	first, rec := tr.Track(rec, violent("a2"))
	require.True(t, first.ShouldTriggerCombat)

	replay, after := tr.Track(rec, violent("a2"))
	assert.True(t, replay.Duplicate)
	assert.False(t, replay.ShouldTriggerCombat)
	assert.Equal(t, 2, replay.UpdatedCount)
	assert.Equal(t, rec.Count, after.Count)
}

func TestTrack_NonViolentDoesNotCount(t *testing.T) {
	tr := escalation.NewTracker(3)
	in := violent("a1")
	in.Violent = false
	in.ActionType = "insult"
	res, rec := tr.Track(escalation.Record{}, in)
	assert.Zero(t, res.UpdatedCount)
	assert.False(t, res.ShouldTriggerCombat)
	assert.Equal(t, "insult", rec.LastActionType)
	assert.Equal(t, "hostility_noted", res.NarrativeHint)
}

func TestTrack_ExplicitSeverityRecorded(t *testing.T) {
	tr := escalation.NewTracker(3)
	in := violent("a1")
	in.Severity = escalation.SeveritySevere
	res, rec := tr.Track(escalation.Record{}, in)
	assert.Equal(t, escalation.SeveritySevere, res.Severity)
	assert.Equal(t, []escalation.Severity{escalation.SeveritySevere}, rec.SeverityHistory)
}

func TestTrack_DoesNotMutatePrevious(t *testing.T) {
	tr := escalation.NewTracker(3)
	prev := escalation.Record{TargetID: "mayor", Count: 1, SeverityHistory: []escalation.Severity{escalation.SeverityMinor}, ActionIDs: []string{"a0"}}
	_, _ = tr.Track(prev, violent("a1"))
	assert.Equal(t, 1, prev.Count)
	assert.Len(t, prev.SeverityHistory, 1)
	assert.Equal(t, []string{"a0"}, prev.ActionIDs)
}

func TestTrack_RemembersBoundedActionIDs(t *testing.T) {
	tr := escalation.NewTracker(1000)
	var rec escalation.Record
	for i := 0; i < 40; i++ {
		_, rec = tr.Track(rec, violent(fmt.Sprintf("a%d", i)))
	}
	assert.Len(t, rec.ActionIDs, 32)
	assert.True(t, rec.Seen("a39"))
	assert.False(t, rec.Seen("a0"))
	assert.Equal(t, 40, rec.Count)
}

func TestNewTracker_DefaultThreshold(t *testing.T) {
	assert.Equal(t, escalation.DefaultThreshold, escalation.NewTracker(0).Threshold)
}

func TestProperty_CountNonDecreasingAndSingleTrigger(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(1, 6).Draw(rt, "threshold")
		tr := escalation.NewTracker(threshold)
		n := rapid.IntRange(1, 30).Draw(rt, "n")

		var rec escalation.Record
		triggers := 0
		crossedAt := -1
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("a%d", rapid.IntRange(0, 8).Draw(rt, "id"))
			isViolent := rapid.Bool().Draw(rt, "violent")
			before := rec.Count

			res, next := tr.Track(rec, escalation.Input{TargetID: "t", ActionID: id, ActionType: "attack", Violent: isViolent})
			require.GreaterOrEqual(rt, next.Count, before)
			if res.ShouldTriggerCombat {
				triggers++
				assert.Equal(rt, threshold, next.Count)
				crossedAt = i
			}
			rec = next
		}
		assert.LessOrEqual(rt, triggers, 1)
		if rec.Count >= threshold {
			assert.Equal(rt, 1, triggers)
			assert.GreaterOrEqual(rt, crossedAt, 0)
		}
	})
}
