package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool *Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store backed by pool.
//
// Precondition: the schema has been migrated.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateCampaign inserts c.
//
// Postcondition: returns storage.ErrAlreadyExists when the id is taken.
func (s *Store) CreateCampaign(ctx context.Context, c world.Campaign) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.pool.DB().Exec(ctx, `
		INSERT INTO campaigns (id, title, blueprint_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Title, c.BlueprintID, c.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (world.Campaign, error) {
	var c world.Campaign
	err := s.pool.DB().QueryRow(ctx, `
		SELECT id, title, blueprint_id, created_at FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Title, &c.BlueprintID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return world.Campaign{}, fmt.Errorf("campaign %q: %w", id, storage.ErrNotFound)
		}
		return world.Campaign{}, fmt.Errorf("querying campaign: %w", err)
	}
	return c, nil
}

// Commit applies c in one transaction.
//
// Postcondition: on ErrVersionConflict nothing is written.
func (s *Store) Commit(ctx context.Context, c storage.Commit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tx, err := s.pool.DB().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertAction(ctx, tx, c.Action); err != nil {
		return err
	}
	if c.World != nil {
		if err := saveWorld(ctx, tx, *c.World); err != nil {
			return err
		}
	}
	if c.Character != nil {
		if err := updateCharacter(ctx, tx, *c.Character); err != nil {
			return err
		}
	}
	if c.Combat != nil {
		if err := saveCombat(ctx, tx, c.Combat); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing action: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
