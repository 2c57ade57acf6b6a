package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// CreateCharacter inserts c at version 1.
//
// Precondition: c.CampaignID references an existing campaign.
// Postcondition: returns storage.ErrAlreadyExists when the id is taken in the campaign.
func (s *Store) CreateCharacter(ctx context.Context, c character.State) error {
	c.Version = 1
	doc, err := storage.Document(c)
	if err != nil {
		return err
	}
	_, err = s.pool.DB().Exec(ctx, `
		INSERT INTO characters
			(campaign_id, id, name, level, xp, hp, max_hp, injuries, state, version, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1,NOW())`,
		c.CampaignID, c.ID, c.Name, c.Level, c.XP, c.HP, c.MaxHP, c.Injuries, doc,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23503" {
			return fmt.Errorf("campaign %q: %w", c.CampaignID, storage.ErrNotFound)
		}
		return fmt.Errorf("inserting character: %w", err)
	}
	return nil
}

// GetCharacter retrieves a character by campaign and id.
//
// Postcondition: Returns the character at its stored version or storage.ErrNotFound.
func (s *Store) GetCharacter(ctx context.Context, campaignID, characterID string) (character.State, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.DB().QueryRow(ctx, `
		SELECT state, version FROM characters WHERE campaign_id = $1 AND id = $2`,
		campaignID, characterID,
	).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return character.State{}, fmt.Errorf("character %q: %w", characterID, storage.ErrNotFound)
		}
		return character.State{}, fmt.Errorf("querying character: %w", err)
	}
	return storage.DecodeCharacter(doc, version)
}

// updateCharacter writes c when its stored version equals c.Version.
func updateCharacter(ctx context.Context, q querier, c character.State) error {
	expected := c.Version
	c.Version = expected + 1
	doc, err := storage.Document(c)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE characters
		SET name = $3, level = $4, xp = $5, hp = $6, max_hp = $7, injuries = $8,
		    state = $9, version = version + 1, updated_at = NOW()
		WHERE campaign_id = $1 AND id = $2 AND version = $10`,
		c.CampaignID, c.ID, c.Name, c.Level, c.XP, c.HP, c.MaxHP, c.Injuries, doc, expected,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("character %q at version %d: %w", c.ID, expected, storage.ErrVersionConflict)
	}
	return nil
}
