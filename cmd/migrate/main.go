package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/provenly/interview-integrity-backend/internal/infrastructure/config"
)

const migrationsDir = "migrations"

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, status, create")
		name   = flag.String("name", "", "Migration name (for create action)")
		steps  = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if *action == "create" {
		if *name == "" {
			slog.Error("migration name is required for create action")
			os.Exit(1)
		}
		if err := create(*name); err != nil {
			slog.Error("create failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m, err := open(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to open migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch *action {
	case "up":
		err = run(m, *steps, true)
	case "down":
		err = run(m, *steps, false)
	case "status":
		err = status(m)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func open(databaseURL string) (*migrate.Migrate, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("pgx driver: %w", err)
	}
	return migrate.NewWithDatabaseInstance("file://"+migrationsDir, "pgx5", driver)
}

func run(m *migrate.Migrate, steps int, up bool) error {
	if steps > 0 {
		if !up {
			steps = -steps
		}
		return m.Steps(steps)
	}
	if up {
		return m.Up()
	}
	return m.Down()
}

func status(m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("migration status", "version", version, "dirty", dirty)
	return nil
}

func create(name string) error {
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return err
	}
	stamp := time.Now().UTC().Format("20060102150405")
	for _, dir := range []string{"up", "down"} {
		path := filepath.Join(migrationsDir, fmt.Sprintf("%s_%s.%s.sql", stamp, name, dir))
		if err := os.WriteFile(path, []byte("-- "+name+"\n"), 0o644); err != nil {
			return err
		}
		slog.Info("created migration", "path", path)
	}
	return nil
}
