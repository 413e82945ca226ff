package main

import (
	"context"
	"flag"
	"log"

	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	migrationpg "github.com/muhammadchandra19/kwanza-exchange/pkg/migration-pg"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
)

func main() {
	var (
		direction = flag.String("direction", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of steps to migrate (0 = all)")
	)
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.LogLevel)))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	client, err := postgresql.NewClient(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer client.Close()

	runner := migrationpg.NewRunner(client, zlog, cfg.Migration)

	// Run migrations based on direction
	switch *direction {
	case "up":
		if err := runner.MigrateUp(ctx, *steps); err != nil {
			log.Fatalf("Failed to migrate up: %v", err)
		}
	case "down":
		if err := runner.MigrateDown(ctx, *steps); err != nil {
			log.Fatalf("Failed to migrate down: %v", err)
		}
	default:
		log.Fatalf("Invalid direction: %s. Use 'up' or 'down'", *direction)
	}

	log.Printf("Migration %s completed successfully", *direction)
}
