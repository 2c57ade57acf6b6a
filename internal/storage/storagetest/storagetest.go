// Package storagetest is a behavioural suite every storage.Store backend must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/escalation"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) storage.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("campaign", func(t *testing.T) { testCampaign(t, newStore(t)) })
	t.Run("character", func(t *testing.T) { testCharacter(t, newStore(t)) })
	t.Run("world versioning", func(t *testing.T) { testWorld(t, newStore(t)) })
	t.Run("combat lifecycle", func(t *testing.T) { testCombat(t, newStore(t)) })
	t.Run("action replay", func(t *testing.T) { testActions(t, newStore(t)) })
	t.Run("atomic commit", func(t *testing.T) { testAtomic(t, newStore(t)) })
}

// Seed creates a campaign with one character and returns both.
func Seed(t *testing.T, s storage.Store) (world.Campaign, character.State) {
	t.Helper()
	ctx := context.Background()
	camp := world.Campaign{ID: "camp-" + uuid.NewString()[:8], Title: "Hollow", BlueprintID: "hollow"}
	require.NoError(t, s.CreateCampaign(ctx, camp))
	ch, err := character.New(character.Spec{
		ID:         "hero",
		CampaignID: camp.ID,
		Name:       "Kael",
		Class:      "fighter",
		Abilities:  character.AbilityScores{Strength: 14, Dexterity: 14, Constitution: 12, Intelligence: 10, Wisdom: 10, Charisma: 10},
	})
	require.NoError(t, err)
	require.NoError(t, s.CreateCharacter(ctx, ch))
	ch.Version = 1
	return camp, ch
}

func entry(camp world.Campaign, ch character.State, id string) storage.ActionEntry {
	return storage.ActionEntry{
		CampaignID:  camp.ID,
		CharacterID: ch.ID,
		ActionID:    id,
		Kind:        "narrative",
		Response:    json.RawMessage(`{"ok":true}`),
	}
}

func testCampaign(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp := world.Campaign{ID: "c-" + uuid.NewString()[:8], Title: "T", BlueprintID: "b"}
	require.NoError(t, s.CreateCampaign(ctx, camp))
	assert.ErrorIs(t, s.CreateCampaign(ctx, camp), storage.ErrAlreadyExists)

	got, err := s.GetCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.BlueprintID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetCampaign(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCharacter(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp, ch := Seed(t, s)

	got, err := s.GetCharacter(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, ch.MaxHP, got.HP)
	assert.Equal(t, "Kael", got.Name)

	assert.ErrorIs(t, s.CreateCharacter(ctx, ch), storage.ErrAlreadyExists)

	_, err = s.GetCharacter(ctx, camp.ID, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got.HP--
	require.NoError(t, s.Commit(ctx, storage.Commit{Character: &got, Action: entry(camp, ch, "a1")}))
	again, err := s.GetCharacter(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.Equal(t, got.HP, again.HP)

	err = s.Commit(ctx, storage.Commit{Character: &got, Action: entry(camp, ch, "a2")})
	assert.ErrorIs(t, err, storage.ErrVersionConflict, "stale version")
}

func testWorld(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp, ch := Seed(t, s)

	w, err := s.GetWorldState(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Version)

	w.Location = "Town Square"
	w.Transgressions["mayor"] = escalation.Record{TargetID: "mayor", Count: 1}
	w.Tension = world.TensionState{Score: 40, Phase: "building"}
	require.NoError(t, s.Commit(ctx, storage.Commit{World: &w, Action: entry(camp, ch, "w1")}))

	stored, err := s.GetWorldState(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "Town Square", stored.Location)
	assert.Equal(t, 1, stored.Transgressions["mayor"].Count)
	assert.Equal(t, 40, stored.Tension.Score)

	fresh := world.New(camp.ID, "Elsewhere")
	err = s.Commit(ctx, storage.Commit{World: &fresh, Action: entry(camp, ch, "w2")})
	assert.ErrorIs(t, err, storage.ErrVersionConflict, "second insert of a new world")

	stored.Location = "Docks"
	require.NoError(t, s.Commit(ctx, storage.Commit{World: &stored, Action: entry(camp, ch, "w3")}))
	err = s.Commit(ctx, storage.Commit{World: &stored, Action: entry(camp, ch, "w4")})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func testCombat(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp, ch := Seed(t, s)

	none, err := s.GetActiveCombat(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	goblin := combat.Combatant{ID: "goblin_1", Name: "Goblin", Kind: combat.KindEnemy, HP: 7, MaxHP: 7, AC: 13, Alive: true, DamageDice: "1d6"}
	sess, err := combat.NewSession(camp.ID, ch.ID, []combat.Combatant{goblin}, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, storage.Commit{Combat: sess, Action: entry(camp, ch, "c1")}))

	active, err := s.GetActiveCombat(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.CombatID, active.CombatID)
	assert.Equal(t, int64(1), active.Version)
	assert.Equal(t, []string{ch.ID, "goblin_1"}, active.TurnOrder)

	second, err := combat.NewSession(camp.ID, ch.ID, []combat.Combatant{goblin}, time.Now())
	require.NoError(t, err)
	err = s.Commit(ctx, storage.Commit{Combat: second, Action: entry(camp, ch, "c2")})
	assert.ErrorIs(t, err, storage.ErrVersionConflict, "one active combat per character")

	active.State = combat.StateEnded
	active.Outcome = combat.OutcomeVictory
	active.CombatOver = true
	active.Closed = true
	require.NoError(t, s.Commit(ctx, storage.Commit{Combat: active, Action: entry(camp, ch, "c3")}))

	none, err = s.GetActiveCombat(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := s.ListCombats(ctx, camp.ID, ch.ID)
	require.NoError(t, err)
	require.Len(t, all, 1, "closed sessions are retained")
	assert.True(t, all[0].Closed)
	assert.Equal(t, combat.OutcomeVictory, all[0].Outcome)
}

func testActions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp, ch := Seed(t, s)

	_, err := s.LookupAction(ctx, camp.ID, ch.ID, "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Commit(ctx, storage.Commit{Action: entry(camp, ch, "x")}))
	got, err := s.LookupAction(ctx, camp.ID, ch.ID, "x")
	require.NoError(t, err)
	assert.Equal(t, "narrative", got.Kind)
	assert.JSONEq(t, `{"ok":true}`, string(got.Response))

	err = s.Commit(ctx, storage.Commit{Action: entry(camp, ch, "x")})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func testAtomic(t *testing.T, s storage.Store) {
	ctx := context.Background()
	camp, ch := Seed(t, s)

	w, err := s.GetWorldState(ctx, camp.ID)
	require.NoError(t, err)
	stale := ch
	stale.Version = 7
	w.Location = "Nowhere"

	err = s.Commit(ctx, storage.Commit{World: &w, Character: &stale, Action: entry(camp, ch, "atomic")})
	require.ErrorIs(t, err, storage.ErrVersionConflict)

	after, err := s.GetWorldState(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Version, "world write rolled back")
	_, err = s.LookupAction(ctx, camp.ID, ch.ID, "atomic")
	assert.ErrorIs(t, err, storage.ErrNotFound, "action entry rolled back")
}
