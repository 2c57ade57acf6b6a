package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// GetWorldState returns the stored world state of campaignID, or an empty
// state at version 0 starting at the campaign's default location.
func (s *Store) GetWorldState(ctx context.Context, campaignID string) (world.State, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.DB().QueryRow(ctx, `
		SELECT state, version FROM world_states WHERE campaign_id = $1`,
		campaignID,
	).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return world.New(campaignID, ""), nil
	}
	if err != nil {
		return world.State{}, fmt.Errorf("querying world state: %w", err)
	}
	return storage.DecodeWorld(doc, version)
}

// saveWorld inserts w when w.Version is 0 and otherwise updates it under a
// version check.
func saveWorld(ctx context.Context, q querier, w world.State) error {
	expected := w.Version
	w.Version = expected + 1
	doc, err := storage.Document(w)
	if err != nil {
		return err
	}
	if expected == 0 {
		tag, err := q.Exec(ctx, `
			INSERT INTO world_states (campaign_id, location, tension_score, tension_phase, state, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, NOW())
			ON CONFLICT (campaign_id) DO NOTHING`,
			w.CampaignID, w.Location, w.Tension.Score, w.Tension.Phase, doc,
		)
		if err != nil {
			return fmt.Errorf("inserting world state: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("world state %q already created: %w", w.CampaignID, storage.ErrVersionConflict)
		}
		return nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE world_states
		SET location = $2, tension_score = $3, tension_phase = $4, state = $5,
		    version = version + 1, updated_at = NOW()
		WHERE campaign_id = $1 AND version = $6`,
		w.CampaignID, w.Location, w.Tension.Score, w.Tension.Phase, doc, expected,
	)
	if err != nil {
		return fmt.Errorf("saving world state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("world state %q at version %d: %w", w.CampaignID, expected, storage.ErrVersionConflict)
	}
	return nil
}
