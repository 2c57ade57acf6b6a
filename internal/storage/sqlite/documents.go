package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateCharacter inserts c at version 1.
func (s *Store) CreateCharacter(ctx context.Context, c character.State) error {
	c.Version = 1
	doc, err := storage.Document(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO characters
			(campaign_id, id, name, level, xp, hp, max_hp, injuries, state, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		c.CampaignID, c.ID, c.Name, c.Level, c.XP, c.HP, c.MaxHP, c.Injuries, string(doc), toMillis(time.Now()),
	)
	switch {
	case err == nil:
		return nil
	case isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY):
		return storage.ErrAlreadyExists
	case isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY):
		return fmt.Errorf("campaign %q: %w", c.CampaignID, storage.ErrNotFound)
	default:
		return fmt.Errorf("inserting character: %w", err)
	}
}

// GetCharacter retrieves a character by campaign and id.
func (s *Store) GetCharacter(ctx context.Context, campaignID, characterID string) (character.State, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM characters WHERE campaign_id = ? AND id = ?`,
		campaignID, characterID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return character.State{}, fmt.Errorf("character %q: %w", characterID, storage.ErrNotFound)
	}
	if err != nil {
		return character.State{}, fmt.Errorf("querying character: %w", err)
	}
	return storage.DecodeCharacter([]byte(doc), version)
}

func updateCharacter(ctx context.Context, q execer, c character.State) error {
	expected := c.Version
	c.Version = expected + 1
	doc, err := storage.Document(c)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE characters
		SET name = ?, level = ?, xp = ?, hp = ?, max_hp = ?, injuries = ?,
		    state = ?, version = version + 1, updated_at = ?
		WHERE campaign_id = ? AND id = ? AND version = ?`,
		c.Name, c.Level, c.XP, c.HP, c.MaxHP, c.Injuries, string(doc), toMillis(time.Now()),
		c.CampaignID, c.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("character %q at version %d: %w", c.ID, expected, storage.ErrVersionConflict)
	}
	return nil
}

// GetWorldState returns the stored world state of campaignID, or an empty
// state at version 0.
func (s *Store) GetWorldState(ctx context.Context, campaignID string) (world.State, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM world_states WHERE campaign_id = ?`, campaignID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return world.New(campaignID, ""), nil
	}
	if err != nil {
		return world.State{}, fmt.Errorf("querying world state: %w", err)
	}
	return storage.DecodeWorld([]byte(doc), version)
}

func saveWorld(ctx context.Context, q execer, w world.State) error {
	expected := w.Version
	w.Version = expected + 1
	doc, err := storage.Document(w)
	if err != nil {
		return err
	}
	var res sql.Result
	if expected == 0 {
		res, err = q.ExecContext(ctx, `
			INSERT INTO world_states (campaign_id, location, tension_score, tension_phase, state, version, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT (campaign_id) DO NOTHING`,
			w.CampaignID, w.Location, w.Tension.Score, w.Tension.Phase, string(doc), toMillis(time.Now()),
		)
	} else {
		res, err = q.ExecContext(ctx, `
			UPDATE world_states
			SET location = ?, tension_score = ?, tension_phase = ?, state = ?, version = version + 1, updated_at = ?
			WHERE campaign_id = ? AND version = ?`,
			w.Location, w.Tension.Score, w.Tension.Phase, string(doc), toMillis(time.Now()),
			w.CampaignID, expected,
		)
	}
	if err != nil {
		return fmt.Errorf("saving world state: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("world state %q at version %d: %w", w.CampaignID, expected, storage.ErrVersionConflict)
	}
	return nil
}

// GetActiveCombat returns the character's active session, or nil.
func (s *Store) GetActiveCombat(ctx context.Context, campaignID, characterID string) (*combat.Session, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session, version FROM combat_sessions
		WHERE campaign_id = ? AND character_id = ? AND state = 'active'`,
		campaignID, characterID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active combat: %w", err)
	}
	return storage.DecodeCombat([]byte(doc), version)
}

// ListCombats returns every session of the character ordered by creation.
func (s *Store) ListCombats(ctx context.Context, campaignID, characterID string) ([]*combat.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, version FROM combat_sessions
		WHERE campaign_id = ? AND character_id = ?
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
			doc     string
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("scanning combat row: %w", err)
		}
		sess, err := storage.DecodeCombat([]byte(doc), version)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func saveCombat(ctx context.Context, q execer, sess *combat.Session) error {
	next := sess.Clone()
	expected := next.Version
	next.Version = expected + 1
	doc, err := storage.Document(next)
	if err != nil {
		return err
	}
	if expected == 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO combat_sessions
				(combat_id, campaign_id, character_id, state, outcome, round, session, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			next.CombatID, next.CampaignID, next.CharacterID, string(next.State), string(next.Outcome),
			next.Round, string(doc), toMillis(next.CreatedAt), toMillis(next.UpdatedAt),
		)
		switch {
		case err == nil:
			return nil
		case isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE), isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY):
			return fmt.Errorf("combat for %q already active: %w", next.CharacterID, storage.ErrVersionConflict)
		default:
			return fmt.Errorf("inserting combat session: %w", err)
		}
	}
	res, err := q.ExecContext(ctx, `
		UPDATE combat_sessions
		SET state = ?, outcome = ?, round = ?, session = ?, version = version + 1, updated_at = ?
		WHERE combat_id = ? AND version = ?`,
		string(next.State), string(next.Outcome), next.Round, string(doc), toMillis(next.UpdatedAt),
		next.CombatID, expected,
	)
	if err != nil {
		return fmt.Errorf("saving combat session: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("combat %q at version %d: %w", next.CombatID, expected, storage.ErrVersionConflict)
	}
	return nil
}

// LookupAction returns the stored response of an already processed action.
func (s *Store) LookupAction(ctx context.Context, campaignID, characterID, actionID string) (storage.ActionEntry, error) {
	e := storage.ActionEntry{CampaignID: campaignID, CharacterID: characterID, ActionID: actionID}
	var (
		response string
		created  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, response, created_at FROM action_log
		WHERE campaign_id = ? AND character_id = ? AND action_id = ?`,
		campaignID, characterID, actionID,
	).Scan(&e.Kind, &response, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ActionEntry{}, fmt.Errorf("action %q: %w", actionID, storage.ErrNotFound)
	}
	if err != nil {
		return storage.ActionEntry{}, fmt.Errorf("querying action log: %w", err)
	}
	e.Response = []byte(response)
	e.CreatedAt = fromMillis(created)
	return e, nil
}

func insertAction(ctx context.Context, q execer, e storage.ActionEntry) error {
	if len(e.Response) == 0 {
		e.Response = []byte("{}")
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO action_log (campaign_id, character_id, action_id, kind, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		e.CampaignID, e.CharacterID, e.ActionID, e.Kind, string(e.Response), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("action %q already recorded: %w", e.ActionID, storage.ErrVersionConflict)
	}
	return nil
}
