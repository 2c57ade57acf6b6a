// Package storage defines the persistence boundary of the action pipeline.
// Backends live in the postgres and sqlite subpackages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

var (
	// ErrNotFound is returned when a campaign, character or action does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a commit's expected version is stale.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// ActionEntry is the stored response of a processed action, replayed when the
// same action id is delivered again.
type ActionEntry struct {
	CampaignID  string          `json:"campaign_id"`
	CharacterID string          `json:"character_id"`
	ActionID    string          `json:"action_id"`
	Kind        string          `json:"kind"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Commit is every write of one action, applied atomically.
//
// Each document carries the version it was read at; a document whose stored
// version differs fails the whole commit with ErrVersionConflict. Version 0
// means the document is new and must not exist yet. Nil documents are left
// untouched.
type Commit struct {
	World     *world.State
	Character *character.State
	Combat    *combat.Session
	Action    ActionEntry
}

// Store is the persistence collaborator.
type Store interface {
	CreateCampaign(ctx context.Context, c world.Campaign) error
	GetCampaign(ctx context.Context, id string) (world.Campaign, error)
	// CreateCharacter stores s at version 1.
	CreateCharacter(ctx context.Context, s character.State) error
	GetCharacter(ctx context.Context, campaignID, characterID string) (character.State, error)
	// GetWorldState returns the campaign's world state, or an unsaved empty
	// state at version 0 when none has been committed.
	GetWorldState(ctx context.Context, campaignID string) (world.State, error)
	// GetActiveCombat returns the character's active session, or nil.
	GetActiveCombat(ctx context.Context, campaignID, characterID string) (*combat.Session, error)
	// ListCombats returns every session of the character, oldest first, closed ones included.
	ListCombats(ctx context.Context, campaignID, characterID string) ([]*combat.Session, error)
	LookupAction(ctx context.Context, campaignID, characterID, actionID string) (ActionEntry, error)
	Commit(ctx context.Context, c Commit) error
	Close() error
}

// Validate checks the structural preconditions of c.
func (c Commit) Validate() error {
	if c.Action.CampaignID == "" || c.Action.CharacterID == "" || c.Action.ActionID == "" {
		return fmt.Errorf("commit: action entry needs campaign, character and action ids")
	}
	if c.World != nil && c.World.CampaignID != c.Action.CampaignID {
		return fmt.Errorf("commit: world state belongs to campaign %q", c.World.CampaignID)
	}
	if c.Character != nil && (c.Character.CampaignID != c.Action.CampaignID || c.Character.ID != c.Action.CharacterID) {
		return fmt.Errorf("commit: character %q does not match action", c.Character.ID)
	}
	if c.Combat != nil && (c.Combat.CampaignID != c.Action.CampaignID || c.Combat.CharacterID != c.Action.CharacterID) {
		return fmt.Errorf("commit: combat %q does not match action", c.Combat.CombatID)
	}
	return nil
}

// Document encodes v for a JSON column.
func Document(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return b, nil
}

// DecodeWorld decodes a world state document and stamps version.
func DecodeWorld(doc []byte, version int64) (world.State, error) {
	var s world.State
	if err := json.Unmarshal(doc, &s); err != nil {
		return world.State{}, fmt.Errorf("decoding world state: %w", err)
	}
	fresh := world.New(s.CampaignID, s.Location)
	if s.Transgressions == nil {
		s.Transgressions = fresh.Transgressions
	}
	if s.Reputation == nil {
		s.Reputation = fresh.Reputation
	}
	if s.ActiveNPCs == nil {
		s.ActiveNPCs = fresh.ActiveNPCs
	}
	if s.RecentActions == nil {
		s.RecentActions = fresh.RecentActions
	}
	s.Version = version
	return s, nil
}

// DecodeCharacter decodes a character document and stamps version.
func DecodeCharacter(doc []byte, version int64) (character.State, error) {
	var s character.State
	if err := json.Unmarshal(doc, &s); err != nil {
		return character.State{}, fmt.Errorf("decoding character: %w", err)
	}
	s.Version = version
	return s, nil
}

// DecodeCombat decodes a combat session document and stamps version.
func DecodeCombat(doc []byte, version int64) (*combat.Session, error) {
	var s combat.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decoding combat session: %w", err)
	}
	s.Version = version
	return &s, nil
}
