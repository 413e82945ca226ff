package migrationpg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/postgresql"
)

// Migration is one versioned pair of up/down SQL files named
// <version>_<name>.up.sql and <version>_<name>.down.sql.
type Migration struct {
	ID      string
	Name    string
	UpSQL   string
	DownSQL string
}

// Runner handles PostgreSQL migration execution
type Runner struct {
	client       postgresql.PostgreSQLClient
	log          logger.Interface
	migrationDir string
	table        string
}

// Config for migration runner
type Config struct {
	MigrationDir string `env:"DIR" envDefault:"migrations"`
	Schema       string `env:"SCHEMA" envDefault:"public"`
	TableName    string `env:"TABLE" envDefault:"schema_migrations"`
}

// NewRunner creates a new migration runner for PostgreSQL
func NewRunner(client postgresql.PostgreSQLClient, log logger.Interface, config Config) *Runner {
	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.TableName == "" {
		config.TableName = "schema_migrations"
	}

	return &Runner{
		client:       client,
		log:          log,
		migrationDir: config.MigrationDir,
		table:        config.Schema + "." + config.TableName,
	}
}

// EnsureMigrationTable creates the bookkeeping table if it doesn't exist
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	_, err := r.client.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, r.table))
	return err
}

// Applied returns the ids of applied migrations.
func (r *Runner) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := r.client.Query(ctx, fmt.Sprintf("SELECT id FROM %s", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// Load reads all migrations from the migration directory, ordered by id.
func (r *Runner) Load() ([]Migration, error) {
	upFiles, err := filepath.Glob(filepath.Join(r.migrationDir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(upFiles)

	migrations := make([]Migration, 0, len(upFiles))
	for _, upFile := range upFiles {
		upSQL, err := os.ReadFile(upFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", upFile, err)
		}

		id := strings.TrimSuffix(filepath.Base(upFile), ".up.sql")
		name := id
		if _, after, ok := strings.Cut(id, "_"); ok {
			name = after
		}

		m := Migration{ID: id, Name: name, UpSQL: strings.TrimSpace(string(upSQL))}
		if downSQL, err := os.ReadFile(strings.TrimSuffix(upFile, ".up.sql") + ".down.sql"); err == nil {
			m.DownSQL = strings.TrimSpace(string(downSQL))
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

// MigrateUp applies up to steps pending migrations; steps <= 0 applies all.
func (r *Runner) MigrateUp(ctx context.Context, steps int) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return err
	}
	migrations, err := r.Load()
	if err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, m := range migrations {
		if !applied[m.ID] {
			pending = append(pending, m)
		}
	}
	if steps > 0 && len(pending) > steps {
		pending = pending[:steps]
	}

	for _, m := range pending {
		err := postgresql.WithTx(ctx, r.client, func(txCtx context.Context) error {
			if _, err := r.client.Exec(txCtx, m.UpSQL); err != nil {
				return err
			}
			_, err := r.client.Exec(txCtx,
				fmt.Sprintf("INSERT INTO %s (id, name) VALUES ($1, $2)", r.table), m.ID, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		r.log.Info("applied migration", logger.NewField("migration", m.ID))
	}
	return nil
}

// MigrateDown reverts the last steps applied migrations.
func (r *Runner) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0 for down migrations")
	}
	migrations, err := r.Load()
	if err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}

	reverted := 0
	for i := len(migrations) - 1; i >= 0 && reverted < steps; i-- {
		m := migrations[i]
		if !applied[m.ID] {
			continue
		}
		if m.DownSQL == "" {
			return fmt.Errorf("no down migration for %s", m.ID)
		}
		err := postgresql.WithTx(ctx, r.client, func(txCtx context.Context) error {
			if _, err := r.client.Exec(txCtx, m.DownSQL); err != nil {
				return err
			}
			_, err := r.client.Exec(txCtx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), m.ID)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revert migration %s: %w", m.ID, err)
		}
		r.log.Info("reverted migration", logger.NewField("migration", m.ID))
		reverted++
	}
	return nil
}
