package gormstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Driver names the database backend selected from a DSN.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"

	defaultSQLiteFile = "gameserver.db"
	sqlitePragmas     = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	memoryPath        = ":memory:"
)

// Open connects to the database named by dsn. postgres:// and postgresql://
// URLs select PostgreSQL; sqlite:// URLs and bare paths select SQLite.
func Open(dsn string, config *gorm.Config) (*gorm.DB, Driver, error) {
	driver, sqlitePath, err := ResolveDriver(dsn)
	if err != nil {
		return nil, "", err
	}
	if config == nil {
		config = &gorm.Config{}
	}
	var db *gorm.DB
	switch driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), config)
	case DriverSQLite:
		db, err = gorm.Open(sqlite.Open(sqliteDSN(sqlitePath)), config)
	default:
		return nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, "", err
	}
	if driver == DriverSQLite && sqlitePath == memoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, "", err
		}
		// Each pooled connection to :memory: would see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, driver, nil
}

// ResolveDriver picks the backend for dsn and, for SQLite, the file path.
func ResolveDriver(dsn string) (Driver, string, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return "", "", fmt.Errorf("database url is required")
	}
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return DriverPostgres, "", nil
	}
	if strings.HasPrefix(trimmed, "sqlite://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return DriverSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(trimmed)
	return DriverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == memoryPath {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func sqliteDSN(path string) string {
	if path == memoryPath {
		return path
	}
	return path + "?" + sqlitePragmas
}

// AutoMigrate creates or updates every entity table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entity.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PrepareSchema auto-migrates SQLite databases. PostgreSQL schemas are owned
// by the versioned migrations.
func PrepareSchema(db *gorm.DB, driver Driver) error {
	if driver != DriverSQLite {
		return nil
	}
	return AutoMigrate(db)
}
