// Command migrate applies the SQL files under migrations/ in version order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		dir       = flag.String("dir", "migrations", "Directory holding *.up.sql and *.down.sql files")
		direction = flag.String("direction", "up", "Migration direction: up, down, or status")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if err := run(context.Background(), *dsn, *dir, *direction, *steps); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dsn, dir, direction string, steps int) error {
	if dsn == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if direction != "up" && direction != "down" && direction != "status" {
		return fmt.Errorf("unknown direction %q", direction)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	if direction == "status" {
		files, err := migrationFiles(dir, "up")
		if err != nil {
			return err
		}
		for _, f := range files {
			slog.Info("migration", "version", f.version, "applied", applied[f.version])
		}
		return nil
	}

	files, err := migrationFiles(dir, direction)
	if err != nil {
		return err
	}

	count := 0
	for _, f := range files {
		if (direction == "up") == applied[f.version] {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}

		if err := apply(ctx, pool, f, direction); err != nil {
			return err
		}
		slog.Info("applied migration", "version", f.version, "direction", direction)
		count++
	}

	if count == 0 {
		slog.Info("no migrations to apply")
	} else {
		slog.Info("migrations complete", "count", count)
	}
	return nil
}

type migrationFile struct {
	path    string
	version string
}

// migrationFiles lists the files for direction, newest first when going down
func migrationFiles(dir, direction string) ([]migrationFile, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		execPath, _ := os.Executable()
		dir = filepath.Join(filepath.Dir(execPath), "migrations")
	}

	suffix := "." + direction + ".sql"
	paths, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s migrations found in %s", direction, dir)
	}

	slices.Sort(paths)
	if direction == "down" {
		slices.Reverse(paths)
	}

	files := make([]migrationFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, migrationFile{path: p, version: strings.TrimSuffix(filepath.Base(p), suffix)})
	}
	return files, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration versions: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, f migrationFile, direction string) error {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", f.path, err)
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", f.version, err)
		}

		query := "INSERT INTO schema_migrations (version) VALUES ($1)"
		if direction == "down" {
			query = "DELETE FROM schema_migrations WHERE version = $1"
		}
		if _, err := tx.Exec(ctx, query, f.version); err != nil {
			return fmt.Errorf("failed to update migrations table: %w", err)
		}
		return nil
	})
}
