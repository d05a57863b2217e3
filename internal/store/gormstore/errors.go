package gormstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode   = "23505"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
	sqliteConstraintCode    = 19
	sqliteUniqueCode        = 2067
	sqlitePrimaryKeyCode    = 1555
	sqliteUniqueMessage     = "UNIQUE constraint failed"
	sqliteBusyCode          = 5
	sqliteLockedCode        = 6
	sqlitePrimaryResultMask = 0xFF
	errorOperationCommit    = "commit"
	errorOperationRead      = "read"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqliteUniqueCode, sqlitePrimaryKeyCode:
			return true
		case sqliteConstraintCode:
			// Without extended result codes CHECK and NOT NULL failures share code 19.
			return strings.Contains(sqliteErr.Error(), sqliteUniqueMessage)
		}
	}
	return false
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & sqlitePrimaryResultMask
		return code == sqliteBusyCode || code == sqliteLockedCode
	}
	return false
}

// classifyCommitError tags the driver error with a store sentinel while keeping
// the cause in the chain for diagnostics.
func classifyCommitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStale):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", errorOperationCommit, store.ErrDuplicate, err)
	default:
		return fmt.Errorf("%s: %w", errorOperationCommit, err)
	}
}

func wrapReadError(table string, err error) error {
	return fmt.Errorf("%s %s: %w", errorOperationRead, table, err)
}
