package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
)

// Service contains the banking rules over units of work.
type Service struct {
	units                 store.Factory
	hasher                SecretHasher
	nowFn                 func() time.Time
	logger                OperationLogger
	accountNumbers        AccountNumberGenerator
	accountNumberAttempts int
	staleRetries          int
	historyLimit          int
}

// NewService wires a Service.
func NewService(units store.Factory, hasher SecretHasher, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if units == nil {
		return nil, fmt.Errorf("%w: unit of work factory is nil", ErrInvalidServiceConfig)
	}
	if hasher == nil {
		return nil, fmt.Errorf("%w: secret hasher is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		units:                 units,
		hasher:                hasher,
		nowFn:                 now,
		accountNumbers:        RandomAccountNumber,
		accountNumberAttempts: defaultAccountNumberAttempts,
		staleRetries:          defaultStaleRetries,
		historyLimit:          defaultHistoryLimit,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateAccount opens a zero-balance account for an existing player. The PIN
// is stored only as a digest. Account numbers are regenerated on collision up
// to a fixed number of attempts, after which ErrConflict is returned.
func (service *Service) CreateAccount(ctx context.Context, playerID uint, rawPIN string, rawAccountType string) (entity.BankAccount, error) {
	started := time.Now()
	account, err := service.createAccount(ctx, playerID, rawPIN, rawAccountType)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateAccount,
		AccountID: account.ID,
		PlayerID:  playerID,
		Duration:  time.Since(started),
		Error:     err,
	})
	return account, err
}

func (service *Service) createAccount(ctx context.Context, playerID uint, rawPIN string, rawAccountType string) (entity.BankAccount, error) {
	pin, err := NewPIN(rawPIN)
	if err != nil {
		return entity.BankAccount{}, WrapError(operationCreateAccount, subjectPIN, codeInvalid, err)
	}
	accountType, err := entity.ParseAccountType(rawAccountType)
	if err != nil {
		return entity.BankAccount{}, WrapError(operationCreateAccount, subjectAccount, codeInvalid, fmt.Errorf("%w: %q", ErrInvalidAccountType, rawAccountType))
	}
	digest, err := service.hasher.Hash(pin.String())
	if err != nil {
		return entity.BankAccount{}, WrapError(operationCreateAccount, subjectPIN, codeInvalid, err)
	}
	for attempt := 0; attempt < service.accountNumberAttempts; attempt++ {
		account, collided, err := service.tryCreateAccount(ctx, playerID, digest, accountType)
		if err != nil {
			return entity.BankAccount{}, err
		}
		if !collided {
			return account, nil
		}
	}
	return entity.BankAccount{}, WrapError(operationCreateAccount, subjectAccount, codeConflict,
		fmt.Errorf("%w: no free account number after %d attempts", ErrConflict, service.accountNumberAttempts))
}

// tryCreateAccount reports collided when the generated number is taken, either
// by an existing row or by a concurrent insert detected at commit.
func (service *Service) tryCreateAccount(ctx context.Context, playerID uint, digest string, accountType entity.AccountType) (entity.BankAccount, bool, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()

	if _, err := unit.Players().GetByID(ctx, playerID); err != nil {
		return entity.BankAccount{}, false, normalizeStoreError(operationCreateAccount, subjectPlayer, err)
	}
	now := service.nowFn()
	number := service.accountNumbers(now)
	taken, err := unit.BankAccounts().Count(ctx, store.Eq(entity.ColumnAccountNumber, number))
	if err != nil {
		return entity.BankAccount{}, false, normalizeStoreError(operationCreateAccount, subjectAccount, err)
	}
	if taken > 0 {
		return entity.BankAccount{}, true, nil
	}

	account := &entity.BankAccount{
		OwnerID:       playerID,
		AccountNumber: number,
		AccountType:   accountType,
		PINHash:       digest,
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	unit.BankAccounts().Add(account)
	if err := unit.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return entity.BankAccount{}, true, nil
		}
		return entity.BankAccount{}, false, normalizeStoreError(operationCreateAccount, subjectAccount, err)
	}
	return *account, false, nil
}

// GetAccount returns the account with id.
func (service *Service) GetAccount(ctx context.Context, accountID uint) (entity.BankAccount, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	account, err := loadAccount(ctx, unit, operationLookup, subjectAccount, accountID)
	if err != nil {
		return entity.BankAccount{}, err
	}
	return *account, nil
}

// GetAccountByNumber returns the account with the given account number.
func (service *Service) GetAccountByNumber(ctx context.Context, accountNumber string) (entity.BankAccount, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	account, err := unit.BankAccounts().FirstMatching(ctx, store.Eq(entity.ColumnAccountNumber, accountNumber))
	if err != nil {
		return entity.BankAccount{}, normalizeStoreError(operationLookup, subjectAccount, err)
	}
	return *account, nil
}

// PlayerAccounts lists the accounts owned by an existing player, oldest first.
func (service *Service) PlayerAccounts(ctx context.Context, playerID uint) ([]entity.BankAccount, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	if _, err := unit.Players().GetByID(ctx, playerID); err != nil {
		return nil, normalizeStoreError(operationLookup, subjectPlayer, err)
	}
	accounts, err := unit.BankAccounts().FindMatching(ctx, store.Eq(entity.ColumnOwnerID, playerID), store.OrderBy(entity.ColumnID, false))
	if err != nil {
		return nil, normalizeStoreError(operationLookup, subjectAccount, err)
	}
	return derefAll(accounts), nil
}

// TransactionHistory returns up to limit of the account's most recent
// transactions, newest first. A non-positive limit selects the default.
func (service *Service) TransactionHistory(ctx context.Context, accountID uint, limit int) ([]entity.BankTransaction, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	if _, err := loadAccount(ctx, unit, operationHistory, subjectAccount, accountID); err != nil {
		return nil, err
	}
	rows, err := unit.BankTransactions().FindMatching(ctx,
		store.Eq(entity.ColumnAccountID, accountID),
		store.OrderBy(entity.ColumnCreatedAt, true),
		store.OrderBy(entity.ColumnID, true),
		store.Limit(service.normalizeHistoryLimit(limit)),
	)
	if err != nil {
		return nil, normalizeStoreError(operationHistory, subjectAccount, err)
	}
	return derefAll(rows), nil
}

func (service *Service) normalizeHistoryLimit(limit int) int {
	if limit <= 0 {
		return service.historyLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// LockAccount moves an account to the locked state, blocking deposits,
// withdrawals and transfers in either direction.
func (service *Service) LockAccount(ctx context.Context, accountID uint) (entity.BankAccount, error) {
	return service.setLocked(ctx, operationLock, accountID, true)
}

// UnlockAccount returns a locked account to the active state.
func (service *Service) UnlockAccount(ctx context.Context, accountID uint) (entity.BankAccount, error) {
	return service.setLocked(ctx, operationUnlock, accountID, false)
}

func (service *Service) setLocked(ctx context.Context, operation string, accountID uint, locked bool) (entity.BankAccount, error) {
	started := time.Now()
	outcome, err := service.execute(ctx, operation, func(ctx context.Context, unit store.UnitOfWork) (movement, error) {
		account, err := loadAccount(ctx, unit, operation, subjectAccount, accountID)
		if err != nil {
			return movement{}, err
		}
		if account.IsLocked != locked {
			account.IsLocked = locked
			unit.BankAccounts().MarkForUpdate(account)
		}
		return movement{account: account}, nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operation,
		AccountID: accountID,
		Duration:  time.Since(started),
		Error:     err,
	})
	return outcome.Account, err
}

func loadAccount(ctx context.Context, unit store.UnitOfWork, operation string, subject string, accountID uint) (*entity.BankAccount, error) {
	account, err := unit.BankAccounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, normalizeStoreError(operation, subject, err)
	}
	return account, nil
}

func derefAll[T any](records []*T) []T {
	values := make([]T, 0, len(records))
	for _, record := range records {
		values = append(values, *record)
	}
	return values
}
