package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store/gormstore"
)

const (
	correctPIN           = "1234"
	wrongPIN             = "9999"
	digestPrefix         = "digest:"
	errorMismatchMessage = "expected %v, got %v"
	errorUnexpected      = "unexpected error: %v"
)

var clockStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubHasher struct{}

func (stubHasher) Hash(secret string) (string, error) {
	return digestPrefix + secret, nil
}

func (stubHasher) Verify(secret string, digest string) bool {
	return strings.TrimPrefix(digest, digestPrefix) == secret && strings.HasPrefix(digest, digestPrefix)
}

// steppingClock advances one second on every reading.
type steppingClock struct {
	ticks atomic.Int64
}

func (clock *steppingClock) Now() time.Time {
	return clockStart.Add(time.Duration(clock.ticks.Add(1)) * time.Second)
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) last(test *testing.T) OperationLog {
	test.Helper()
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	if len(logger.entries) == 0 {
		test.Fatalf("expected a log entry")
	}
	return logger.entries[len(logger.entries)-1]
}

type fixture struct {
	store   *gormstore.Store
	service *Service
	logger  *recorderLogger
	clock   *steppingClock
}

func newFixture(test *testing.T, options ...ServiceOption) *fixture {
	test.Helper()
	db, driver, err := gormstore.Open(filepath.Join(test.TempDir(), "ledger.db"), nil)
	if err != nil {
		test.Fatalf("open database: %v", err)
	}
	if err := gormstore.PrepareSchema(db, driver); err != nil {
		test.Fatalf("prepare schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	test.Cleanup(func() { _ = sqlDB.Close() })

	clock := &steppingClock{}
	gormStore := gormstore.New(db, gormstore.WithClock(clock.Now), gormstore.WithRetryPolicy(gormstore.RetryPolicy{Attempts: 5, Backoff: 5 * time.Millisecond}))
	logger := &recorderLogger{}
	allOptions := append([]ServiceOption{WithOperationLogger(logger)}, options...)
	service, err := NewService(gormStore, stubHasher{}, clock.Now, allOptions...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return &fixture{store: gormStore, service: service, logger: logger, clock: clock}
}

func (fixture *fixture) mustPlayer(test *testing.T, username string) *entity.Player {
	test.Helper()
	ctx := context.Background()
	unit := fixture.store.Begin(ctx)
	player := &entity.Player{
		Username:      username,
		PasswordHash:  "x",
		Email:         username + "@example.com",
		CharacterName: username,
	}
	unit.Players().Add(player)
	if err := unit.Commit(ctx); err != nil {
		test.Fatalf("seed player: %v", err)
	}
	return player
}

func (fixture *fixture) mustAccount(test *testing.T, ownerID uint, balance int64) entity.BankAccount {
	test.Helper()
	ctx := context.Background()
	account, err := fixture.service.CreateAccount(ctx, ownerID, correctPIN, "")
	if err != nil {
		test.Fatalf("create account: %v", err)
	}
	if balance > 0 {
		outcome, err := fixture.service.Deposit(ctx, account.ID, balance, "seed")
		if err != nil || !outcome.Approved {
			test.Fatalf("seed deposit: %v %+v", err, outcome)
		}
		account = outcome.Account
	}
	return account
}

func (fixture *fixture) balance(test *testing.T, accountID uint) int64 {
	test.Helper()
	account, err := fixture.service.GetAccount(context.Background(), accountID)
	if err != nil {
		test.Fatalf("get account: %v", err)
	}
	return account.Balance
}

func (fixture *fixture) history(test *testing.T, accountID uint) []entity.BankTransaction {
	test.Helper()
	rows, err := fixture.service.TransactionHistory(context.Background(), accountID, maxHistoryLimit)
	if err != nil {
		test.Fatalf("history: %v", err)
	}
	return rows
}

// faultyFactory wraps a real factory but replaces every commit result.
type faultyFactory struct {
	inner     store.Factory
	commitErr error
	commits   atomic.Int64
}

func (factory *faultyFactory) Begin(ctx context.Context) store.UnitOfWork {
	return &faultyUnit{UnitOfWork: factory.inner.Begin(ctx), factory: factory}
}

type faultyUnit struct {
	store.UnitOfWork
	factory *faultyFactory
}

func (unit *faultyUnit) Commit(ctx context.Context) error {
	unit.factory.commits.Add(1)
	unit.UnitOfWork.Close()
	return unit.factory.commitErr
}

func expectError(test *testing.T, err error, want error) {
	test.Helper()
	if !errors.Is(err, want) {
		test.Fatalf(errorMismatchMessage, want, err)
	}
}
