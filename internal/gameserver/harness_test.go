package gameserver_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/gameserver"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/narration"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage/sqlite"
)

// script is a scripted source: each draw returns the next face value
// (1-based), clamped to the die size, repeating the last face when exhausted.
type script struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (s *script) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[len(s.vals)-1]
	if s.i < len(s.vals) {
		v = s.vals[s.i]
	}
	s.i++
	return min(max(v, 1), n) - 1
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rules() config.RulesConfig {
	return config.RulesConfig{
		EscalationThreshold:    3,
		BuildingAt:             30,
		TenseAt:                55,
		ClimaxAt:               75,
		FleeDC:                 12,
		CheckDC:                12,
		DefeatHealPercent:      50,
		DefeatXPPenaltyPercent: 15,
		RecentActions:          5,
	}
}

func hollow(t *testing.T) *npc.Blueprint {
	t.Helper()
	goblinLoot := &npc.LootTable{
		Currency: &npc.CurrencyDrop{Min: 5, Max: 5},
		Items:    []npc.ItemDrop{{Item: "rusty dagger", ChancePercent: 100}},
	}
	b, err := npc.NewBlueprint("hollow", []*npc.Template{
		{ID: "mayor", Name: "Mayor Elsa Thorn", Location: "Town Square", Faction: "hollow_council",
			Protection: npc.ProtectionEssential, MaxHP: 9, AC: 10, DamageDice: "1d4", Protectors: []string{"watchman"}},
		{ID: "informant", Name: "Sly Pell", Location: "Town Square", Protection: npc.ProtectionPlotSignificant,
			MaxHP: 6, AC: 10, AttackBonus: 1, DamageDice: "1d4", XP: 20},
		{ID: "watchman", Name: "Watchman", Role: "guard", MaxHP: 11, AC: 14, AttackBonus: 3, DamageDice: "1d6+1", XP: 25},
		{ID: "goblin_a", Name: "Goblin Scout", Location: "Old Road", MaxHP: 7, AC: 13, AttackBonus: 3,
			DamageDice: "1d4", XP: 50, Loot: goblinLoot},
		{ID: "goblin_b", Name: "Goblin Archer", Location: "Old Road", MaxHP: 7, AC: 13, AttackBonus: 3,
			DamageDice: "1d4", XP: 50},
	})
	require.NoError(t, err)
	return b
}

type harness struct {
	svc    *gameserver.ActionService
	store  *sqlite.Store
	logger *zap.Logger

	mu    sync.Mutex
	faces []int
}

// roll scripts the dice of the next action.
func (h *harness) roll(faces ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faces = faces
}

func (h *harness) source() dice.Source {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &script{vals: append([]int(nil), h.faces...)}
}

// newHarness builds a service over a temp-file SQLite store with campaign
// "camp" and the fighter "hero" already created.
func newHarness(t *testing.T, primary narration.Narrator) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zaptest.NewLogger(t)
	h := &harness{store: store, logger: logger, faces: []int{10}}
	narrator := narration.WithFallback(primary, narration.NewTemplateNarrator(), logger)
	h.svc = gameserver.NewActionService(store, npc.NewRegistry(hollow(t)), narrator, rules(), logger,
		gameserver.WithDiceSource(h.source),
		gameserver.WithClock(func() time.Time { return epoch }),
	)

	ctx := context.Background()
	_, err = h.svc.CreateCampaign(ctx, gameserver.CreateCampaignRequest{ID: "camp", Title: "Hollow", BlueprintID: "hollow"})
	require.NoError(t, err)
	_, err = h.svc.CreateCharacter(ctx, gameserver.CreateCharacterRequest{
		CampaignID: "camp",
		ID:         "hero",
		Name:       "Kael",
		Class:      "fighter",
		Abilities:  character.AbilityScores{Strength: 14, Dexterity: 12, Constitution: 14, Intelligence: 10, Wisdom: 10, Charisma: 10},
		Weapon:     character.Weapon{Name: "longsword", DamageDice: "1d8"},
		ArmorClass: 16,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) submit(t *testing.T, req gameserver.ActionRequest) *gameserver.ActionResponse {
	t.Helper()
	if req.CampaignID == "" {
		req.CampaignID = "camp"
	}
	if req.CharacterID == "" {
		req.CharacterID = "hero"
	}
	resp, err := h.svc.SubmitAction(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (h *harness) character(t *testing.T) character.State {
	t.Helper()
	c, err := h.store.GetCharacter(context.Background(), "camp", "hero")
	require.NoError(t, err)
	return c
}
