package ledger

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
)

var accountNumberPattern = regexp.MustCompile(`^ACC2024\d{6}$`)

func TestNewServiceValidatesDependencies(test *testing.T) {
	test.Parallel()
	now := func() time.Time { return clockStart }
	fixture := newFixture(test)
	testCases := []struct {
		name  string
		build func() (*Service, error)
	}{
		{name: "nil factory", build: func() (*Service, error) { return NewService(nil, stubHasher{}, now) }},
		{name: "nil hasher", build: func() (*Service, error) { return NewService(fixture.store, nil, now) }},
		{name: "nil clock", build: func() (*Service, error) { return NewService(fixture.store, stubHasher{}, nil) }},
	}
	for _, testCase := range testCases {
		if _, err := testCase.build(); err == nil {
			test.Fatalf("%s: expected error", testCase.name)
		} else {
			expectError(test, err, ErrInvalidServiceConfig)
		}
	}
}

func TestCreateAccountOpensEmptyUnlockedAccount(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	player := fixture.mustPlayer(test, "player42")

	account, err := fixture.service.CreateAccount(context.Background(), player.ID, correctPIN, "")
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if account.ID == 0 || account.Balance != 0 || account.IsLocked {
		test.Fatalf("unexpected account: %+v", account)
	}
	if !accountNumberPattern.MatchString(account.AccountNumber) {
		test.Fatalf("unexpected account number %q", account.AccountNumber)
	}
	if account.PINHash == correctPIN || account.PINHash == "" {
		test.Fatalf("pin must be stored as a digest, got %q", account.PINHash)
	}
	if account.AccountType != entity.AccountTypePersonal || account.OwnerID != player.ID {
		test.Fatalf("unexpected ownership or type: %+v", account)
	}

	stored, err := fixture.service.GetAccountByNumber(context.Background(), account.AccountNumber)
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if stored.ID != account.ID {
		test.Fatalf(errorMismatchMessage, account.ID, stored.ID)
	}
	if entry := fixture.logger.last(test); entry.Operation != operationCreateAccount || entry.Status != OperationStatusOK {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestCreateAccountRejectsInput(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	player := fixture.mustPlayer(test, "validator")
	testCases := []struct {
		name        string
		playerID    uint
		pin         string
		accountType string
		wantErr     error
	}{
		{name: "missing player", playerID: player.ID + 100, pin: correctPIN, wantErr: ErrNotFound},
		{name: "short pin", playerID: player.ID, pin: "12", wantErr: ErrInvalidPIN},
		{name: "letters in pin", playerID: player.ID, pin: "12ab", wantErr: ErrInvalidPIN},
		{name: "long pin", playerID: player.ID, pin: "123456789", wantErr: ErrInvalidPIN},
		{name: "padded pin", playerID: player.ID, pin: " " + correctPIN, wantErr: ErrInvalidPIN},
		{name: "unknown type", playerID: player.ID, pin: correctPIN, accountType: "offshore", wantErr: ErrInvalidAccountType},
	}
	for _, testCase := range testCases {
		_, err := fixture.service.CreateAccount(context.Background(), testCase.playerID, testCase.pin, testCase.accountType)
		if err == nil {
			test.Fatalf("%s: expected error", testCase.name)
		}
		expectError(test, err, testCase.wantErr)
	}
}

func TestCreateAccountRegeneratesCollidingNumbers(test *testing.T) {
	test.Parallel()
	candidates := []string{"ACC2024111111", "ACC2024111111", "ACC2024111111", "ACC2024222222"}
	var calls atomic.Int64
	generator := func(time.Time) string {
		index := calls.Add(1) - 1
		if int(index) >= len(candidates) {
			return fmt.Sprintf("ACC2024%06d", 300000+index)
		}
		return candidates[index]
	}
	fixture := newFixture(test, WithAccountNumberGenerator(generator))
	player := fixture.mustPlayer(test, "collider")

	first, err := fixture.service.CreateAccount(context.Background(), player.ID, correctPIN, "business")
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	second, err := fixture.service.CreateAccount(context.Background(), player.ID, correctPIN, "shared")
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if first.AccountNumber != "ACC2024111111" || second.AccountNumber != "ACC2024222222" {
		test.Fatalf("unexpected numbers %q and %q", first.AccountNumber, second.AccountNumber)
	}
	if calls.Load() != 4 {
		test.Fatalf("expected 4 generated candidates, got %d", calls.Load())
	}

	accounts, err := fixture.service.PlayerAccounts(context.Background(), player.ID)
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if len(accounts) != 2 || accounts[0].ID != first.ID || accounts[1].AccountType != entity.AccountTypeShared {
		test.Fatalf("unexpected player accounts: %+v", accounts)
	}
}

func TestCreateAccountFailsConflictPastAttemptBound(test *testing.T) {
	test.Parallel()
	fixed := func(time.Time) string { return "ACC2024999999" }
	fixture := newFixture(test, WithAccountNumberGenerator(fixed), WithAccountNumberAttempts(3))
	player := fixture.mustPlayer(test, "unlucky")

	if _, err := fixture.service.CreateAccount(context.Background(), player.ID, correctPIN, ""); err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	_, err := fixture.service.CreateAccount(context.Background(), player.ID, correctPIN, "")
	expectError(test, err, ErrConflict)
	if entry := fixture.logger.last(test); entry.Status != OperationStatusError {
		test.Fatalf("expected error log, got %+v", entry)
	}
}

func TestCreateAccountCountsCommitDuplicatesAsAttempts(test *testing.T) {
	test.Parallel()
	base := newFixture(test)
	player := base.mustPlayer(test, "racer")
	factory := &faultyFactory{inner: base.store, commitErr: fmt.Errorf("commit: %w", store.ErrDuplicate)}
	service, err := NewService(factory, stubHasher{}, base.clock.Now, WithAccountNumberAttempts(4))
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	_, err = service.CreateAccount(context.Background(), player.ID, correctPIN, "")
	expectError(test, err, ErrConflict)
	if factory.commits.Load() != 4 {
		test.Fatalf("expected 4 commit attempts, got %d", factory.commits.Load())
	}
}

func TestLookupsReportNotFound(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	ctx := context.Background()
	_, err := fixture.service.GetAccount(ctx, 404)
	expectError(test, err, ErrNotFound)
	_, err = fixture.service.GetAccountByNumber(ctx, "ACC0000000000")
	expectError(test, err, ErrNotFound)
	_, err = fixture.service.PlayerAccounts(ctx, 404)
	expectError(test, err, ErrNotFound)
	_, err = fixture.service.TransactionHistory(ctx, 404, 10)
	expectError(test, err, ErrNotFound)
}

func TestLockAndUnlockAccount(test *testing.T) {
	test.Parallel()
	fixture := newFixture(test)
	ctx := context.Background()
	player := fixture.mustPlayer(test, "locksmith")
	account := fixture.mustAccount(test, player.ID, 100)

	locked, err := fixture.service.LockAccount(ctx, account.ID)
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if !locked.IsLocked {
		test.Fatalf("expected locked account")
	}
	if _, err := fixture.service.LockAccount(ctx, account.ID); err != nil {
		test.Fatalf("locking twice should be a no-op: %v", err)
	}
	_, err = fixture.service.Deposit(ctx, account.ID, 10, "")
	expectError(test, err, ErrLocked)

	unlocked, err := fixture.service.UnlockAccount(ctx, account.ID)
	if err != nil {
		test.Fatalf(errorUnexpected, err)
	}
	if unlocked.IsLocked {
		test.Fatalf("expected active account")
	}
	outcome, err := fixture.service.Deposit(ctx, account.ID, 10, "")
	if err != nil || !outcome.Approved {
		test.Fatalf("deposit after unlock: %v %+v", err, outcome)
	}
	_, err = fixture.service.LockAccount(ctx, 404)
	expectError(test, err, ErrNotFound)
}
