// Package migrations applies the versioned PostgreSQL schema embedded in the
// binary. SQLite databases are prepared by gormstore.PrepareSchema instead.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const sourceName = "iofs"

//go:embed sql/*.sql
var files embed.FS

var (
	ErrEmptyDatabaseURL    = errors.New("database URL cannot be empty")
	ErrUnsupportedDatabase = errors.New("migrations support postgres only")
)

// Source returns the embedded migration files as a migrate source driver.
func Source() (source.Driver, error) {
	driver, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return driver, nil
}

// Up applies every pending migration. No pending migrations is not an error.
func Up(databaseURL string) error {
	return run(databaseURL, func(migrator *migrate.Migrate) error {
		return migrator.Up()
	})
}

// Down rolls back steps migrations.
func Down(databaseURL string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return run(databaseURL, func(migrator *migrate.Migrate) error {
		return migrator.Steps(-steps)
	})
}

// Version reports the applied schema version and whether it is dirty.
func Version(databaseURL string) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := run(databaseURL, func(migrator *migrate.Migrate) error {
		var versionErr error
		version, dirty, versionErr = migrator.Version()
		if errors.Is(versionErr, migrate.ErrNilVersion) {
			return nil
		}
		return versionErr
	})
	return version, dirty, err
}

func run(databaseURL string, apply func(migrator *migrate.Migrate) error) error {
	if err := checkDatabaseURL(databaseURL); err != nil {
		return err
	}
	sourceDriver, err := Source()
	if err != nil {
		return err
	}
	migrator, err := migrate.NewWithSourceInstance(sourceName, sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	applyErr := apply(migrator)
	sourceErr, dbErr := migrator.Close()
	if applyErr != nil && !errors.Is(applyErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", applyErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}
	return nil
}

func checkDatabaseURL(databaseURL string) error {
	trimmed := strings.TrimSpace(databaseURL)
	if trimmed == "" {
		return ErrEmptyDatabaseURL
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "postgres://") && !strings.HasPrefix(lower, "postgresql://") {
		return fmt.Errorf("%w: %q", ErrUnsupportedDatabase, trimmed)
	}
	return nil
}
