// Package gormstore implements the store contracts on GORM for PostgreSQL and SQLite.
package gormstore

import (
	"context"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// RetryPolicy bounds commit retries after transient storage faults.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func (policy RetryPolicy) normalized() RetryPolicy {
	if policy.Attempts <= 0 {
		policy.Attempts = defaultRetryAttempts
	}
	if policy.Backoff < 0 {
		policy.Backoff = defaultRetryBackoff
	}
	return policy
}

// Option configures a Store.
type Option func(*Store)

// WithRetryPolicy overrides the transient-fault retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(gormStore *Store) {
		gormStore.retry = policy.normalized()
	}
}

// WithClock overrides the time source used for entity timestamps.
func WithClock(now func() time.Time) Option {
	return func(gormStore *Store) {
		if now != nil {
			gormStore.now = now
		}
	}
}

// WithLogger wires a logger for commit retries.
func WithLogger(logger *zap.Logger) Option {
	return func(gormStore *Store) {
		if logger != nil {
			gormStore.logger = logger
		}
	}
}

// Store opens units of work over a gorm.DB.
type Store struct {
	db     *gorm.DB
	retry  RetryPolicy
	now    func() time.Time
	logger *zap.Logger
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB, options ...Option) *Store {
	gormStore := &Store{
		db:     db,
		retry:  RetryPolicy{Attempts: defaultRetryAttempts, Backoff: defaultRetryBackoff},
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(gormStore)
		}
	}
	return gormStore
}

// Begin opens a unit of work. The database transaction itself is only held
// for the duration of Commit.
func (gormStore *Store) Begin(ctx context.Context) store.UnitOfWork {
	return &UnitOfWork{store: gormStore}
}

// DB exposes the underlying handle for schema management.
func (gormStore *Store) DB() *gorm.DB {
	return gormStore.db
}
