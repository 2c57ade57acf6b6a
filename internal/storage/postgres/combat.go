package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// GetActiveCombat returns the character's active session, or nil when there is none.
func (s *Store) GetActiveCombat(ctx context.Context, campaignID, characterID string) (*combat.Session, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.pool.DB().QueryRow(ctx, `
		SELECT session, version FROM combat_sessions
		WHERE campaign_id = $1 AND character_id = $2 AND state = 'active'`,
		campaignID, characterID,
	).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active combat: %w", err)
	}
	return storage.DecodeCombat(doc, version)
}

// ListCombats returns every session of the character ordered by creation.
func (s *Store) ListCombats(ctx context.Context, campaignID, characterID string) ([]*combat.Session, error) {
	rows, err := s.pool.DB().Query(ctx, `
		SELECT session, version FROM combat_sessions
		WHERE campaign_id = $1 AND character_id = $2
		ORDER BY created_at ASC, combat_id ASC`,
		campaignID, characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combats: %w", err)
	}
	defer rows.Close()

	out := make([]*combat.Session, 0)
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scanning combat row: %w", err)
		}
		sess, err := storage.DecodeCombat(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// saveCombat inserts a new session (Version 0) or updates an existing one
// under a version check.
func saveCombat(ctx context.Context, q querier, sess *combat.Session) error {
	next := sess.Clone()
	expected := next.Version
	next.Version = expected + 1
	doc, err := storage.Document(next)
	if err != nil {
		return err
	}
	if expected == 0 {
		_, err := q.Exec(ctx, `
			INSERT INTO combat_sessions
				(combat_id, campaign_id, character_id, state, outcome, round, session, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,1,$8,$9)`,
			next.CombatID, next.CampaignID, next.CharacterID, string(next.State), string(next.Outcome),
			next.Round, doc, next.CreatedAt, next.UpdatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("combat for %q already active: %w", next.CharacterID, storage.ErrVersionConflict)
			}
			return fmt.Errorf("inserting combat session: %w", err)
		}
		return nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE combat_sessions
		SET state = $2, outcome = $3, round = $4, session = $5, version = version + 1, updated_at = $6
		WHERE combat_id = $1 AND version = $7`,
		next.CombatID, string(next.State), string(next.Outcome), next.Round, doc, next.UpdatedAt, expected,
	)
	if err != nil {
		return fmt.Errorf("saving combat session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("combat %q at version %d: %w", next.CombatID, expected, storage.ErrVersionConflict)
	}
	return nil
}
