// Package gameserver sequences one player action through target resolution,
// plot armor, combat, tension and narration, and serves the result over gRPC.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/dice"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/npc"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/plotarmor"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/tension"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/narration"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/observability"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// maxAttempts bounds pipeline reruns after a version conflict.
const maxAttempts = 3

// Option customises an ActionService.
type Option func(*ActionService)

// WithDiceSource replaces the per-action randomness source factory.
func WithDiceSource(f func() dice.Source) Option {
	return func(s *ActionService) { s.newSource = f }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *ActionService) { s.now = now }
}

// WithEngine shares a combat lock engine between services.
func WithEngine(e *combat.Engine) Option {
	return func(s *ActionService) { s.engine = e }
}

// ActionService is the action orchestrator.
type ActionService struct {
	store     storage.Store
	registry  *npc.Registry
	narrator  *narration.Fallback
	policy    plotarmor.Policy
	estimator tension.Estimator
	engine    *combat.Engine
	rules     config.RulesConfig
	newSource func() dice.Source
	now       func() time.Time
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewActionService wires the orchestrator.
//
// Precondition: store, registry, narrator and logger must be non-nil; rules passed config validation.
// Postcondition: Returns a service rolling with a logged crypto source unless overridden.
func NewActionService(
	store storage.Store,
	registry *npc.Registry,
	narrator *narration.Fallback,
	rules config.RulesConfig,
	logger *zap.Logger,
	opts ...Option,
) *ActionService {
	s := &ActionService{
		store:     store,
		registry:  registry,
		narrator:  narrator,
		policy:    plotarmor.NewPolicy(rules.EscalationThreshold),
		estimator: tension.NewEstimator(tension.Bands{Building: rules.BuildingAt, Tense: rules.TenseAt, Climax: rules.ClimaxAt}),
		engine:    combat.NewEngine(),
		rules:     rules,
		now:       time.Now,
		tracer:    otel.Tracer("github.com/andreokosmidhs-spec/dnd-ai-clean/internal/gameserver"),
		logger:    logger,
	}
	s.newSource = func() dice.Source {
		return dice.NewLoggedRoller(dice.NewCryptoSource(), s.logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitAction runs req through the pipeline and commits the result atomically.
//
// Actions on the same campaign and character are linearized. A request whose
// ActionID was already processed returns the stored response with Replayed set
// and changes nothing.
//
// Precondition: ctx must be non-nil.
// Postcondition: Returns a *ValidationError for unknown campaigns or characters,
// an ErrInvalidRequest wrap for malformed input, or the committed response.
func (s *ActionService) SubmitAction(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ActionID == "" {
		req.ActionID = uuid.NewString()
	}
	log := observability.ForAction(s.logger, req.CampaignID, req.CharacterID, req.ActionID)

	ctx, span := s.tracer.Start(ctx, "SubmitAction", trace.WithAttributes(
		attribute.String("campaign.id", req.CampaignID),
		attribute.String("character.id", req.CharacterID),
		attribute.String("action.id", req.ActionID),
	))
	defer span.End()

	unlock, err := s.engine.Lock(ctx, combat.Key{CampaignID: req.CampaignID, CharacterID: req.CharacterID})
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := s.now()
	var resp *ActionResponse
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = s.attempt(ctx, req, log)
		if !errors.Is(err, storage.ErrVersionConflict) {
			break
		}
		log.Warn("version conflict, rerunning action", zap.Int("attempt", attempt))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("action.kind", string(resp.Kind)), attribute.Bool("action.replayed", resp.Replayed))
	log.Info("action resolved",
		zap.String("kind", string(resp.Kind)),
		zap.Bool("success", resp.Success),
		zap.Bool("replayed", resp.Replayed),
		zap.Bool("narration_fallback", resp.NarrationFallback),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return resp, nil
}

// attempt runs the pipeline once against freshly read state.
func (s *ActionService) attempt(ctx context.Context, req ActionRequest, log *zap.Logger) (*ActionResponse, error) {
	entry, err := s.store.LookupAction(ctx, req.CampaignID, req.CharacterID, req.ActionID)
	switch {
	case err == nil:
		var resp ActionResponse
		if err := json.Unmarshal(entry.Response, &resp); err != nil {
			return nil, fmt.Errorf("decoding stored response: %w", err)
		}
		resp.Replayed = true
		return &resp, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("looking up action: %w", err)
	}

	t, err := s.load(ctx, req, log)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, t); err != nil {
		return nil, err
	}
	s.finish(ctx, t)
	if err := s.commit(ctx, t); err != nil {
		return nil, err
	}
	return t.resp, nil
}

// load fetches the four documents an action reads, concurrently.
func (s *ActionService) load(ctx context.Context, req ActionRequest, log *zap.Logger) (*turn, error) {
	ctx, span := s.tracer.Start(ctx, "load")
	defer span.End()

	t := &turn{
		req:  req,
		now:  s.now().UTC(),
		src:  s.newSource(),
		log:  log,
		resp: &ActionResponse{ActionID: req.ActionID, Success: true},
	}
	// Every fetch runs to completion so reference errors are reported campaign first.
	var campErr, charErr error
	var g errgroup.Group
	g.Go(func() error {
		t.campaign, campErr = s.store.GetCampaign(ctx, req.CampaignID)
		campErr = notFound(campErr, "campaign", req.CampaignID)
		return campErr
	})
	g.Go(func() error {
		t.char, charErr = s.store.GetCharacter(ctx, req.CampaignID, req.CharacterID)
		charErr = notFound(charErr, "character", req.CharacterID)
		return charErr
	})
	g.Go(func() error {
		w, err := s.store.GetWorldState(ctx, req.CampaignID)
		t.world = w
		return err
	})
	g.Go(func() error {
		sess, err := s.store.GetActiveCombat(ctx, req.CampaignID, req.CharacterID)
		t.readCombat = sess
		return err
	})
	if err := g.Wait(); err != nil {
		switch {
		case campErr != nil:
			return nil, campErr
		case charErr != nil:
			return nil, charErr
		}
		return nil, err
	}

	bp, err := s.registry.Get(t.campaign.BlueprintID)
	if err != nil {
		log.Warn("campaign blueprint unavailable", zap.String("blueprint_id", t.campaign.BlueprintID), zap.Error(err))
	}
	t.blueprint = bp
	t.cur = t.world.Clone()
	t.curChar = t.char.Clone()
	t.sess = t.readCombat.Clone()
	t.kind = classify(req, t.sess)
	t.resp.Kind = t.kind
	return t, nil
}

// finish records the action, scores tension and narrates.
func (s *ActionService) finish(ctx context.Context, t *turn) {
	if t.noop {
		t.resp.Tension = t.world.Tension
		t.resp.Pacing = tension.PacingFor(tension.Phase(t.world.Tension.Phase))
	} else {
		t.applyWorld(world.Delta{Action: &world.ActionRecord{
			ID:      t.req.ActionID,
			Kind:    string(t.kind),
			Text:    t.req.ActionText,
			Hostile: t.hostile,
			At:      t.now,
		}})
		ts, pacing := s.estimator.Estimate(tension.Input{
			World:         t.cur,
			Character:     t.curChar,
			CombatActive:  t.sess.IsActive(),
			RecentActions: t.cur.Recent(s.rules.RecentActions),
		}, t.override, t.now)
		t.applyWorld(world.Delta{Tension: &ts})
		t.resp.Tension = ts
		t.resp.Pacing = pacing
	}

	if t.sess != nil {
		t.resp.CombatOver = t.sess.CombatOver
		t.resp.Outcome = t.sess.Outcome
	}

	ctx, span := s.tracer.Start(ctx, "narrate")
	defer span.End()
	out := s.narrator.Render(ctx, narration.Request{
		Mode:          narrationMode(t),
		Pacing:        t.resp.Pacing,
		Character:     t.curChar.Name,
		Location:      t.cur.Location,
		ActionText:    t.req.ActionText,
		Summaries:     t.resp.MechanicalSummaries,
		Clarification: t.clarification,
		Facts:         t.facts,
	})
	t.resp.Narration = out.Text
	t.resp.NarrationFallback = out.Fallback
	span.SetAttributes(attribute.Bool("narration.fallback", out.Fallback))
}

// commit writes every changed document and the response in one transaction.
func (s *ActionService) commit(ctx context.Context, t *turn) error {
	ctx, span := s.tracer.Start(ctx, "commit")
	defer span.End()

	c := storage.Commit{}
	if !t.noop {
		w := t.cur
		w.Version = t.world.Version
		w.UpdatedAt = t.now
		c.World = &w
		if !t.resp.CharacterDelta.IsZero() {
			ch := t.curChar
			ch.Version = t.char.Version
			ch.UpdatedAt = t.now
			c.Character = &ch
		}
		if t.combatDirty {
			sess := t.sess.Clone()
			sess.UpdatedAt = t.now
			c.Combat = sess
			shown := sess.Clone()
			shown.Version++
			t.resp.Combat = shown
		}
	}
	if t.resp.Combat == nil && t.sess != nil {
		t.resp.Combat = t.sess.Clone()
	}

	doc, err := json.Marshal(t.resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	c.Action = storage.ActionEntry{
		CampaignID:  t.req.CampaignID,
		CharacterID: t.req.CharacterID,
		ActionID:    t.req.ActionID,
		Kind:        string(t.kind),
		Response:    doc,
		CreatedAt:   t.now,
	}
	if err := s.store.Commit(ctx, c); err != nil {
		span.RecordError(err)
		return fmt.Errorf("committing action: %w", err)
	}
	return nil
}

// GetCombat returns the character's active combat session, or nil when none.
func (s *ActionService) GetCombat(ctx context.Context, campaignID, characterID string) (*combat.Session, error) {
	if err := s.checkRefs(ctx, campaignID, characterID); err != nil {
		return nil, err
	}
	return s.store.GetActiveCombat(ctx, campaignID, characterID)
}

// ListCombats returns every combat of the character, closed ones included.
func (s *ActionService) ListCombats(ctx context.Context, campaignID, characterID string) ([]*combat.Session, error) {
	if err := s.checkRefs(ctx, campaignID, characterID); err != nil {
		return nil, err
	}
	return s.store.ListCombats(ctx, campaignID, characterID)
}

func (s *ActionService) checkRefs(ctx context.Context, campaignID, characterID string) error {
	if campaignID == "" || characterID == "" {
		return invalid("campaign_id and character_id are required")
	}
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return notFound(err, "campaign", campaignID)
	}
	if _, err := s.store.GetCharacter(ctx, campaignID, characterID); err != nil {
		return notFound(err, "character", characterID)
	}
	return nil
}

// CreateCampaignRequest starts a new play-through of a blueprint.
type CreateCampaignRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	BlueprintID string `json:"blueprint_id"`
}

// CreateCampaign stores a new campaign.
//
// Postcondition: Returns a *ValidationError when the blueprint is not loaded.
func (s *ActionService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (world.Campaign, error) {
	if req.BlueprintID == "" {
		return world.Campaign{}, invalid("blueprint_id is required")
	}
	if _, err := s.registry.Get(req.BlueprintID); err != nil {
		return world.Campaign{}, &ValidationError{Ref: "blueprint", ID: req.BlueprintID}
	}
	c := world.Campaign{ID: req.ID, Title: req.Title, BlueprintID: req.BlueprintID, CreatedAt: s.now().UTC()}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return world.Campaign{}, err
	}
	s.logger.Info("campaign created", zap.String("campaign_id", c.ID), zap.String("blueprint_id", c.BlueprintID))
	return c, nil
}

// CreateCharacterRequest carries a new character's choices.
type CreateCharacterRequest struct {
	CampaignID string                  `json:"campaign_id"`
	ID         string                  `json:"id,omitempty"`
	Name       string                  `json:"name"`
	Class      string                  `json:"class"`
	Abilities  character.AbilityScores `json:"abilities"`
	Weapon     character.Weapon        `json:"weapon"`
	ArmorClass int                     `json:"armor_class,omitempty"`
}

// CreateCharacter builds and stores a level-one character.
func (s *ActionService) CreateCharacter(ctx context.Context, req CreateCharacterRequest) (character.State, error) {
	if _, err := s.store.GetCampaign(ctx, req.CampaignID); err != nil {
		return character.State{}, notFound(err, "campaign", req.CampaignID)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	c, err := character.New(character.Spec{
		ID:         req.ID,
		CampaignID: req.CampaignID,
		Name:       req.Name,
		Class:      req.Class,
		Abilities:  req.Abilities,
		Weapon:     req.Weapon,
		ArmorClass: req.ArmorClass,
	})
	if err != nil {
		return character.State{}, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.CreateCharacter(ctx, c); err != nil {
		return character.State{}, err
	}
	c.Version = 1
	return c, nil
}
