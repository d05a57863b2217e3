package gormstore

import (
	"context"
	"errors"
	"testing"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const insertAccountPattern = `INSERT INTO "bank_accounts"`

func newPostgresMockStore(test *testing.T) (*Store, sqlmock.Sqlmock) {
	test.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		test.Fatalf("sqlmock: %v", err)
	}
	test.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		test.Fatalf("gorm open: %v", err)
	}
	return New(db, WithRetryPolicy(RetryPolicy{Attempts: 3})), mock
}

func TestPostgresUniqueViolationMapsToDuplicate(test *testing.T) {
	test.Parallel()
	gormStore, mock := newPostgresMockStore(test)
	mock.ExpectBegin()
	mock.ExpectQuery(insertAccountPattern).WillReturnError(&pgconn.PgError{Code: pgUniqueViolationCode, ConstraintName: "idx_bank_accounts_account_number"})
	mock.ExpectRollback()

	unit := gormStore.Begin(context.Background())
	account := newAccount(1, "ACC2024123456", 0)
	unit.BankAccounts().Add(account)
	err := unit.Commit(context.Background())
	if !errors.Is(err, store.ErrDuplicate) {
		test.Fatalf("expected duplicate, got %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		test.Fatalf("expected driver cause to stay in the chain")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		test.Fatalf("expectations: %v", err)
	}
}

func TestPostgresSerializationFailureIsRetried(test *testing.T) {
	test.Parallel()
	gormStore, mock := newPostgresMockStore(test)
	mock.ExpectBegin()
	mock.ExpectQuery(insertAccountPattern).WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(insertAccountPattern).WillReturnRows(sqlmock.NewRows([]string{entity.ColumnID}).AddRow(11))
	mock.ExpectCommit()

	unit := gormStore.Begin(context.Background())
	account := newAccount(1, "ACC2024654321", 0)
	unit.BankAccounts().Add(account)
	if err := unit.Commit(context.Background()); err != nil {
		test.Fatalf("commit: %v", err)
	}
	if account.ID != 11 {
		test.Fatalf("expected id 11, got %d", account.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		test.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransientFaultGivesUpAfterPolicy(test *testing.T) {
	test.Parallel()
	gormStore, mock := newPostgresMockStore(test)
	for attempt := 0; attempt < 3; attempt++ {
		mock.ExpectBegin()
		mock.ExpectQuery(insertAccountPattern).WillReturnError(&pgconn.PgError{Code: pgDeadlockDetected})
		mock.ExpectRollback()
	}

	unit := gormStore.Begin(context.Background())
	account := newAccount(1, "ACC2024000777", 0)
	unit.BankAccounts().Add(account)
	err := unit.Commit(context.Background())
	if err == nil || errors.Is(err, store.ErrDuplicate) {
		test.Fatalf("expected plain commit failure, got %v", err)
	}
	if account.ID != 0 {
		test.Fatalf("expected id to stay unset, got %d", account.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		test.Fatalf("expectations: %v", err)
	}
}
