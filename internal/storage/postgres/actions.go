package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// LookupAction returns the stored response of an already processed action.
//
// Postcondition: returns storage.ErrNotFound when the action id is new.
func (s *Store) LookupAction(ctx context.Context, campaignID, characterID, actionID string) (storage.ActionEntry, error) {
	e := storage.ActionEntry{CampaignID: campaignID, CharacterID: characterID, ActionID: actionID}
	err := s.pool.DB().QueryRow(ctx, `
		SELECT kind, response, created_at FROM action_log
		WHERE campaign_id = $1 AND character_id = $2 AND action_id = $3`,
		campaignID, characterID, actionID,
	).Scan(&e.Kind, &e.Response, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ActionEntry{}, fmt.Errorf("action %q: %w", actionID, storage.ErrNotFound)
		}
		return storage.ActionEntry{}, fmt.Errorf("querying action log: %w", err)
	}
	return e, nil
}

// insertAction records e; a second delivery of the same action id conflicts.
func insertAction(ctx context.Context, q querier, e storage.ActionEntry) error {
	if len(e.Response) == 0 {
		e.Response = []byte("{}")
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO action_log (campaign_id, character_id, action_id, kind, response, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING`,
		e.CampaignID, e.CharacterID, e.ActionID, e.Kind, []byte(e.Response),
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("action %q already recorded: %w", e.ActionID, storage.ErrVersionConflict)
	}
	return nil
}
