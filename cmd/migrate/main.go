// Package main applies or reverts the embedded PostgreSQL schema.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("database.driver is %q; the sqlite store migrates itself on open", cfg.Database.Driver)
	}
	dsn := cfg.Database.DSN()

	var version uint
	var dirty bool
	switch {
	case *direction == "up":
		version, dirty, err = postgres.Migrate(dsn, *steps)
	case *direction == "down" && *steps > 0:
		version, dirty, err = postgres.Migrate(dsn, -*steps)
	case *direction == "down":
		err = postgres.MigrateDown(dsn)
	default:
		log.Fatalf("invalid direction %q: must be 'up' or 'down'", *direction)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	fmt.Fprintf(os.Stdout, "migrated %s to version=%d dirty=%v [%s]\n", *direction, version, dirty, time.Since(start))
}
