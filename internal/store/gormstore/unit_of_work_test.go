package gormstore

import (
	"context"
	"errors"
	"testing"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
)

func TestCommitPersistsAcrossRepositories(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	unit := gormStore.Begin(ctx)
	player := newPlayer("alice")
	unit.Players().Add(player)
	if err := unit.Commit(ctx); err != nil {
		test.Fatalf("commit player: %v", err)
	}
	if player.ID == 0 {
		test.Fatalf("expected generated id")
	}
	if !player.CreatedAt.Equal(fixedNow) {
		test.Fatalf("expected store clock timestamp, got %v", player.CreatedAt)
	}

	unit = gormStore.Begin(ctx)
	account := newAccount(player.ID, "ACC2024100001", 0)
	unit.BankAccounts().Add(account)
	unit.BankTransactions().Add(&entity.BankTransaction{
		AccountID:       1,
		Amount:          0,
		Type:            entity.TransactionDeposit,
		PreviousBalance: 0,
		NewBalance:      0,
	})
	if err := unit.Commit(ctx); err != nil {
		test.Fatalf("commit account: %v", err)
	}

	reader := gormStore.Begin(ctx)
	defer reader.Close()
	stored, err := reader.BankAccounts().GetByID(ctx, account.ID)
	if err != nil {
		test.Fatalf("get account: %v", err)
	}
	if stored.AccountNumber != account.AccountNumber || stored.OwnerID != player.ID {
		test.Fatalf("unexpected account: %+v", stored)
	}
	transactions, err := reader.BankTransactions().GetAll(ctx)
	if err != nil {
		test.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 1 || string(transactions[0].Metadata) != "{}" {
		test.Fatalf("unexpected transactions: %+v", transactions)
	}
}

func TestStagedChangesAreNotVisibleBeforeCommit(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	unit := gormStore.Begin(ctx)
	unit.Players().Add(newPlayer("bob"))
	count, err := unit.Players().Count(ctx)
	if err != nil {
		test.Fatalf("count: %v", err)
	}
	if count != 0 {
		test.Fatalf("expected staged insert to be invisible, got %d", count)
	}
	unit.Close()
	if err := unit.Commit(ctx); !errors.Is(err, store.ErrUnitClosed) {
		test.Fatalf("expected closed unit, got %v", err)
	}
	if _, err := unit.Players().GetAll(ctx); !errors.Is(err, store.ErrUnitClosed) {
		test.Fatalf("expected closed unit on read, got %v", err)
	}

	reader := gormStore.Begin(ctx)
	defer reader.Close()
	count, err = reader.Players().Count(ctx)
	if err != nil {
		test.Fatalf("count: %v", err)
	}
	if count != 0 {
		test.Fatalf("expected discarded insert, got %d rows", count)
	}
}

func TestCommitIsAtomicOnUniqueViolation(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	seed := gormStore.Begin(ctx)
	owner := newPlayer("carol")
	seed.Players().Add(owner)
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed: %v", err)
	}
	seed = gormStore.Begin(ctx)
	seed.BankAccounts().Add(newAccount(owner.ID, "ACC2024555555", 10))
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed account: %v", err)
	}

	unit := gormStore.Begin(ctx)
	extraPlayer := newPlayer("dave")
	duplicate := newAccount(owner.ID, "ACC2024555555", 0)
	unit.Players().Add(extraPlayer)
	unit.BankAccounts().Add(duplicate)
	err := unit.Commit(ctx)
	if !errors.Is(err, store.ErrDuplicate) {
		test.Fatalf("expected duplicate, got %v", err)
	}
	if extraPlayer.ID != 0 || duplicate.ID != 0 {
		test.Fatalf("expected ids restored after rollback, got %d and %d", extraPlayer.ID, duplicate.ID)
	}

	reader := gormStore.Begin(ctx)
	defer reader.Close()
	if _, err := reader.Players().FirstMatching(ctx, store.Eq(entity.ColumnUsername, "dave")); !errors.Is(err, store.ErrNotFound) {
		test.Fatalf("expected rolled back player, got %v", err)
	}
}

func TestSchemaRejectsNegativeBalance(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	seed := gormStore.Begin(ctx)
	owner := newPlayer("erin")
	seed.Players().Add(owner)
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed: %v", err)
	}

	unit := gormStore.Begin(ctx)
	overdrawn := newAccount(owner.ID, "ACC2024777777", -1)
	unit.BankAccounts().Add(overdrawn)
	err := unit.Commit(ctx)
	if err == nil {
		test.Fatalf("expected check constraint failure")
	}
	if errors.Is(err, store.ErrDuplicate) {
		test.Fatalf("check failure must not be reported as duplicate: %v", err)
	}
	if overdrawn.ID != 0 {
		test.Fatalf("expected id restored after rollback, got %d", overdrawn.ID)
	}
}

func TestConcurrentUpdateIsDetected(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	seed := gormStore.Begin(ctx)
	account := newAccount(1, "ACC2024000001", 100)
	seed.BankAccounts().Add(account)
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed: %v", err)
	}

	first := gormStore.Begin(ctx)
	second := gormStore.Begin(ctx)
	firstCopy, err := first.BankAccounts().GetByID(ctx, account.ID)
	if err != nil {
		test.Fatalf("read first: %v", err)
	}
	secondCopy, err := second.BankAccounts().GetByID(ctx, account.ID)
	if err != nil {
		test.Fatalf("read second: %v", err)
	}

	firstCopy.Balance = 40
	first.BankAccounts().MarkForUpdate(firstCopy)
	if err := first.Commit(ctx); err != nil {
		test.Fatalf("first commit: %v", err)
	}
	if firstCopy.Version != 1 {
		test.Fatalf("expected version 1, got %d", firstCopy.Version)
	}

	secondCopy.Balance = 70
	second.BankAccounts().MarkForUpdate(secondCopy)
	if err := second.Commit(ctx); !errors.Is(err, store.ErrStale) {
		test.Fatalf("expected stale, got %v", err)
	}
	if secondCopy.Version != 0 {
		test.Fatalf("expected version restored, got %d", secondCopy.Version)
	}

	reader := gormStore.Begin(ctx)
	defer reader.Close()
	stored, err := reader.BankAccounts().GetByID(ctx, account.ID)
	if err != nil {
		test.Fatalf("read back: %v", err)
	}
	if stored.Balance != 40 {
		test.Fatalf("expected first writer to win, got %d", stored.Balance)
	}
}

func TestRemovalHonoursVersion(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	seed := gormStore.Begin(ctx)
	vehicles := []*entity.Vehicle{
		{Plate: "AAA111", OwnerID: 1, EngineHealth: 1000, BodyHealth: 1000},
		{Plate: "BBB222", OwnerID: 1, EngineHealth: 1000, BodyHealth: 1000},
		{Plate: "CCC333", OwnerID: 2, EngineHealth: 1000, BodyHealth: 1000},
	}
	seed.Vehicles().AddMany(vehicles...)
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed: %v", err)
	}

	unit := gormStore.Begin(ctx)
	owned, err := unit.Vehicles().FindMatching(ctx, store.Eq(entity.ColumnOwnerID, 1))
	if err != nil {
		test.Fatalf("find: %v", err)
	}
	unit.Vehicles().RemoveMany(owned...)
	if err := unit.Commit(ctx); err != nil {
		test.Fatalf("remove: %v", err)
	}

	stale := gormStore.Begin(ctx)
	stale.Vehicles().MarkForRemoval(vehicles[2])
	vehicles[2].Version = 5
	if err := stale.Commit(ctx); !errors.Is(err, store.ErrStale) {
		test.Fatalf("expected stale removal, got %v", err)
	}

	reader := gormStore.Begin(ctx)
	defer reader.Close()
	remaining, err := reader.Vehicles().Count(ctx)
	if err != nil {
		test.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		test.Fatalf("expected one vehicle left, got %d", remaining)
	}
}

func TestBankTransactionsAreAppendOnly(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	gormStore := newSQLiteStore(test)

	seed := gormStore.Begin(ctx)
	row := &entity.BankTransaction{AccountID: 1, Amount: 5, Type: entity.TransactionDeposit, NewBalance: 5}
	seed.BankTransactions().Add(row)
	if err := seed.Commit(ctx); err != nil {
		test.Fatalf("seed: %v", err)
	}

	unit := gormStore.Begin(ctx)
	row.Description = "edited"
	unit.BankTransactions().MarkForUpdate(row)
	if err := unit.Commit(ctx); !errors.Is(err, entity.ErrImmutableTransaction) {
		test.Fatalf("expected immutable error, got %v", err)
	}

	unit = gormStore.Begin(ctx)
	unit.BankTransactions().MarkForRemoval(row)
	if err := unit.Commit(ctx); !errors.Is(err, entity.ErrImmutableTransaction) {
		test.Fatalf("expected immutable error on delete, got %v", err)
	}
}

func TestCommitWithoutChangesIsNoop(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	unit := newSQLiteStore(test).Begin(ctx)
	if err := unit.Commit(ctx); err != nil {
		test.Fatalf("empty commit: %v", err)
	}
	unit.Close()
}
