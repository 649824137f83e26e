package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/example/quotesapi/internal/config"
	"github.com/example/quotesapi/internal/store"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
		dir     = flag.String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	)
	flag.Parse()

	db, err := config.NewDatabase()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if db.DBAdapter != "postgres" {
		log.Fatalf("Migrations only work with PostgreSQL. Current adapter: %s", db.DBAdapter)
	}

	migrationsDir := db.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}

	m, err := store.NewMigrator(migrationsDir, db.PostgresDSN)
	if err != nil {
		log.Fatalf("Migrator setup failed: %v", err)
	}
	defer m.Close()

	if err := run(m, *command, *steps, *version); err != nil {
		m.Close()
		log.Fatal(err)
	}
}

func run(m *store.Migrator, command string, steps int, version uint) error {
	switch command {
	case "up":
		var err error
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Println("Migrations applied successfully")
	case "down":
		var err error
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		fmt.Println("Migrations rolled back successfully")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		if dirty {
			fmt.Printf("Database is in a dirty state (version %d)\n", v)
			m.Close()
			os.Exit(1)
		}
		fmt.Printf("Current migration version: %d\n", v)
	case "force":
		if version == 0 {
			return errors.New("version required for force command (use -version flag)")
		}
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		fmt.Printf("Forced database to version %d\n", version)
	default:
		return fmt.Errorf("unknown command: %s (supported: up, down, version, force)", command)
	}
	return nil
}
