package check_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
)

func TestInfer(t *testing.T) {
	cases := map[string]string{
		"I climb the wall":        "athletics",
		"I try to sneak past":     "stealth",
		"I persuade the guard":    "persuasion",
		"I search the desk":       "investigation",
		"I listen at the door":    "perception",
		"I threaten the merchant": "intimidation",
		"I try to pick the lock":  "sleight_of_hand",
	}
	for text, want := range cases {
		got, _, ok := check.Infer(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}

	_, _, ok := check.Infer("I walk to the tavern")
	assert.False(t, ok)
}

func TestInfer_MatchesWordStartsOnly(t *testing.T) {
	_, _, ok := check.Infer("the slier fox")
	assert.False(t, ok, "'lie' inside a word must not match")
}

func TestResolve(t *testing.T) {
	req := check.Issue("athletics", "strength", 12, "climb the wall", time.Unix(0, 0))
	require.NotEmpty(t, req.ID)

	out, err := check.Resolve(&req, check.Result{CheckID: req.ID, Roll: 10}, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, out.Total)
	assert.True(t, out.Success)

	out, err = check.Resolve(&req, check.Result{CheckID: req.ID, Roll: 9}, 2)
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestResolve_Naturals(t *testing.T) {
	req := check.Issue("stealth", "dexterity", 25, "", time.Now())

	out, err := check.Resolve(&req, check.Result{CheckID: req.ID, Roll: 20}, 0)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.CriticalSuccess)

	easy := check.Issue("stealth", "dexterity", 2, "", time.Now())
	out, err = check.Resolve(&easy, check.Result{CheckID: easy.ID, Roll: 1}, 10)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.True(t, out.CriticalFailure)
}

func TestResolve_Errors(t *testing.T) {
	_, err := check.Resolve(nil, check.Result{CheckID: "x", Roll: 10}, 0)
	assert.ErrorIs(t, err, check.ErrNoPendingCheck)

	req := check.Issue("stealth", "dexterity", 10, "", time.Now())
	_, err = check.Resolve(&req, check.Result{CheckID: "other", Roll: 10}, 0)
	assert.ErrorIs(t, err, check.ErrUnknownCheck)

	_, err = check.Resolve(&req, check.Result{CheckID: req.ID, Roll: 21}, 0)
	assert.ErrorIs(t, err, check.ErrInvalidRoll)
}

func TestProperty_ResolveTotal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dc := rapid.IntRange(1, 30).Draw(rt, "dc")
		roll := rapid.IntRange(1, 20).Draw(rt, "roll")
		mod := rapid.IntRange(-5, 10).Draw(rt, "mod")
		req := check.Issue("athletics", "strength", dc, "", time.Now())

		out, err := check.Resolve(&req, check.Result{CheckID: req.ID, Roll: roll}, mod)
		require.NoError(rt, err)
		assert.Equal(rt, roll+mod, out.Total)
		if roll != 1 && roll != 20 {
			assert.Equal(rt, roll+mod >= dc, out.Success)
		}
	})
}
