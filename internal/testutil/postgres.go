// Package testutil starts throwaway PostgreSQL instances for storage tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage/postgres"
)

const postgresImage = "postgres:16-alpine"

// engineTables lists every table the schema creates, children first.
var engineTables = []string{"action_log", "combat_sessions", "world_states", "characters", "campaigns"}

// PostgresContainer is a running database with a connected pool.
type PostgresContainer struct {
	Pool   *postgres.Pool
	Config config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL in Docker and connects a pool to it.
// The container is terminated when t finishes.
//
// Precondition: Docker is reachable. The test is skipped under -short.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests need docker; skipped in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "engine",
				"POSTGRES_PASSWORD": "engine",
				"POSTGRES_DB":       "engine",
			},
			// postgres logs readiness twice: once for the init server, once for the real one.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolving container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("resolving container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Driver:          "postgres",
		Host:            host,
		Port:            port.Int(),
		User:            "engine",
		Password:        "engine",
		Name:            "engine",
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to %s: %v", cfg.DSN(), err)
	}
	t.Cleanup(pool.Close)

	t.Logf("postgres ready at %s:%d [%s]", host, cfg.Port, time.Since(start))
	return &PostgresContainer{Pool: pool, Config: cfg}
}

// DSN returns the connection string of the container database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}

// ApplyMigrations brings the schema fully up.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	version, _, err := postgres.Migrate(pc.DSN(), 0)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("schema at version %d", version)
}

// Truncate empties every engine table so a test starts from a blank database.
//
// Precondition: ApplyMigrations has run.
func (pc *PostgresContainer) Truncate(t *testing.T) {
	t.Helper()
	for _, table := range engineTables {
		if _, err := pc.Pool.DB().Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
}
