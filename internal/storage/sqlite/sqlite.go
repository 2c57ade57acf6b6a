// Package sqlite provides an embedded single-file store using the pure-Go
// modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/migrations"
)

// Store implements storage.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path and applies the embedded migrations.
//
// Precondition: path is a file path; in-memory databases are not supported
// because migrations run on a separate connection.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	clean := filepath.Clean(path)
	if err := migrateUp(clean); err != nil {
		return nil, err
	}

	dsn := clean + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(path string) error {
	src, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating sqlite db: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateCampaign inserts c.
func (s *Store) CreateCampaign(ctx context.Context, c world.Campaign) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, title, blueprint_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Title, c.BlueprintID, toMillis(c.CreatedAt),
	)
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (world.Campaign, error) {
	var (
		c       world.Campaign
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, blueprint_id, created_at FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.BlueprintID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Campaign{}, fmt.Errorf("campaign %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return world.Campaign{}, fmt.Errorf("querying campaign: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}

// Commit applies c in one transaction.
func (s *Store) Commit(ctx context.Context, c storage.Commit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing action: %w", err)
	}
	return nil
}

// isConstraint reports whether err is the SQLite extended result code.
func isConstraint(err error, code int) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}
