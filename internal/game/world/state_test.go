package world_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/check"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

func seeded() world.State {
	s := world.New("camp-1", "Town Square")
	s.ActiveNPCs = []world.ActiveNPC{{ID: "bandit_1", Name: "Bandit"}, {ID: "mayor", Name: "Mayor Elsa"}}
	s.Transgressions["mayor"] = escalation.Record{TargetID: "mayor", Count: 2}
	return s
}

func TestApply_NPCChanges(t *testing.T) {
	s := seeded()
	out := world.Apply(s, world.Delta{
		AddedNPCs:       []world.ActiveNPC{{ID: "guard_1", Name: "Guard"}, {ID: "mayor", Name: "dup"}},
		RemovedNPCs:     []string{"bandit_1"},
		UnconsciousNPCs: []string{"guard_1"},
	})

	require.Len(t, out.ActiveNPCs, 2)
	assert.Equal(t, "mayor", out.ActiveNPCs[0].ID)
	assert.Equal(t, "Mayor Elsa", out.ActiveNPCs[0].Name, "existing npc is not replaced")
	assert.Equal(t, "guard_1", out.ActiveNPCs[1].ID)
	assert.True(t, out.ActiveNPCs[1].Unconscious)

	assert.Len(t, s.ActiveNPCs, 2, "input state is not mutated")
	assert.Equal(t, "bandit_1", s.ActiveNPCs[0].ID)
}

func TestApply_TransgressionsNeverDecrease(t *testing.T) {
	s := seeded()
	out := world.Apply(s, world.Delta{Transgressions: map[string]escalation.Record{
		"mayor": {TargetID: "mayor", Count: 1},
		"smith": {TargetID: "smith", Count: 1},
	}})
	assert.Equal(t, 2, out.Transgressions["mayor"].Count)
	assert.Equal(t, 1, out.Transgressions["smith"].Count)
	_, leaked := s.Transgressions["smith"]
	assert.False(t, leaked)
}

func TestApply_ReputationAccumulates(t *testing.T) {
	s := seeded()
	s.Reputation["millbrook"] = -5
	out := world.Apply(s, world.Delta{Reputation: map[string]int{"millbrook": -10}})
	assert.Equal(t, -15, out.Reputation["millbrook"])
	assert.Equal(t, -5, s.Reputation["millbrook"])
}

func TestApply_PendingCheckLifecycle(t *testing.T) {
	s := seeded()
	req := check.Issue("athletics", "strength", 12, "climb", time.Now())
	issued := world.Apply(s, world.Delta{PendingCheck: &req})
	require.NotNil(t, issued.PendingCheck)
	assert.Equal(t, req.ID, issued.PendingCheck.ID)

	cleared := world.Apply(issued, world.Delta{ClearCheck: true})
	assert.Nil(t, cleared.PendingCheck)
	assert.NotNil(t, issued.PendingCheck)
}

func TestApply_RecentActionsBounded(t *testing.T) {
	s := seeded()
	for i := 0; i < 15; i++ {
		s = world.Apply(s, world.Delta{Action: &world.ActionRecord{ID: fmt.Sprintf("a%d", i)}})
	}
	require.Len(t, s.RecentActions, world.MaxRecentActions)
	assert.Equal(t, "a5", s.RecentActions[0].ID)
	assert.Equal(t, "a14", s.RecentActions[9].ID)

	recent := s.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "a12", recent[0].ID)
	assert.Nil(t, s.Recent(0))
}

func TestDelta_Merge(t *testing.T) {
	tension := world.TensionState{Score: 40}
	a := world.Delta{RemovedNPCs: []string{"x"}, Reputation: map[string]int{"f": -5}}
	b := world.Delta{Reputation: map[string]int{"f": -5, "g": 2}, Tension: &tension, ClearCheck: true}
	m := a.Merge(b)
	assert.Equal(t, []string{"x"}, m.RemovedNPCs)
	assert.Equal(t, map[string]int{"f": -10, "g": 2}, m.Reputation)
	assert.Equal(t, 40, m.Tension.Score)
	assert.True(t, m.ClearCheck)
	assert.False(t, m.IsZero())
	assert.True(t, world.Delta{}.Merge(world.Delta{}).IsZero())
}

func TestOpenTransgressions(t *testing.T) {
	s := seeded()
	s.Transgressions["guard"] = escalation.Record{Count: 4, Triggered: true}
	assert.Equal(t, 2, s.OpenTransgressions())
}

func TestTransgression_ZeroValue(t *testing.T) {
	s := world.New("c", "")
	r := s.Transgression("nobody")
	assert.Equal(t, "nobody", r.TargetID)
	assert.Zero(t, r.Count)
}

func TestProperty_ApplyCountsMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := world.New("c", "")
		best := 0
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		for i := 0; i < n; i++ {
			c := rapid.IntRange(0, 10).Draw(rt, "count")
			s = world.Apply(s, world.Delta{Transgressions: map[string]escalation.Record{"t": {TargetID: "t", Count: c}}})
			best = max(best, c)
			assert.Equal(rt, best, s.Transgressions["t"].Count)
		}
	})
}

func TestApply_SceneChange(t *testing.T) {
	s := seeded()
	out := world.Apply(s, world.Delta{
		Location:    "Docks",
		RemovedNPCs: []string{"bandit_1", "mayor"},
		AddedNPCs:   []world.ActiveNPC{{ID: "mayor", Name: "Mayor Elsa"}, {ID: "dockhand", Name: "Dockhand"}},
	})

	assert.Equal(t, "Docks", out.Location)
	require.Len(t, out.ActiveNPCs, 2, "removal happens before additions")
	assert.Equal(t, "mayor", out.ActiveNPCs[0].ID)
	assert.Equal(t, "Town Square", s.Location)

	m := world.Delta{Location: "A"}.Merge(world.Delta{Location: "B"})
	assert.Equal(t, "B", m.Location)
	assert.False(t, m.IsZero())
}

func TestDelta_MergeAddThenRemove(t *testing.T) {
	s := seeded()
	a := world.Delta{AddedNPCs: []world.ActiveNPC{{ID: "wolf", Name: "Wolf"}, {ID: "fox", Name: "Fox"}}}
	b := world.Delta{RemovedNPCs: []string{"wolf"}}

	m := a.Merge(b)
	require.Len(t, m.AddedNPCs, 1)
	assert.Equal(t, "fox", m.AddedNPCs[0].ID)
	assert.Equal(t, world.Apply(world.Apply(s, a), b).ActiveNPCs, world.Apply(s, m).ActiveNPCs)
}
