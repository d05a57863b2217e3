package gormstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newSQLiteStore(test *testing.T, options ...Option) *Store {
	test.Helper()
	path := filepath.Join(test.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	test.Cleanup(func() { _ = sqlDB.Close() })
	defaults := []Option{WithClock(func() time.Time { return fixedNow }), WithRetryPolicy(RetryPolicy{Attempts: 3})}
	return New(db, append(defaults, options...)...)
}

func newPlayer(username string) *entity.Player {
	return &entity.Player{
		Username:      username,
		PasswordHash:  "hash",
		Email:         username + "@example.com",
		CharacterName: username,
		Cash:          5000,
	}
}

func newAccount(ownerID uint, number string, balance int64) *entity.BankAccount {
	return &entity.BankAccount{
		OwnerID:       ownerID,
		AccountNumber: number,
		Balance:       balance,
		AccountType:   entity.AccountTypePersonal,
		PINHash:       "digest",
	}
}
