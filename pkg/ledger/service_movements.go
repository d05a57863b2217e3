package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const maxDescriptionRunes = 255

// movement is the staged result of one read-decide cycle.
type movement struct {
	reason       DeclineReason
	account      *entity.BankAccount
	counterparty *entity.BankAccount
	rows         []*entity.BankTransaction
}

func (staged movement) outcome() Outcome {
	outcome := Outcome{Approved: staged.reason == DeclineNone, Reason: staged.reason}
	if staged.account != nil {
		outcome.Account = *staged.account
	}
	if staged.counterparty != nil {
		counterparty := *staged.counterparty
		outcome.Counterparty = &counterparty
	}
	outcome.Transactions = derefAll(staged.rows)
	return outcome
}

type transferMetadata struct {
	CounterpartyAccountNumber string `json:"counterparty_account_number"`
	TransferID                string `json:"transfer_id"`
}

// execute runs decide against a fresh unit of work and commits what it staged.
// When a commit loses an optimistic version race the whole cycle is replayed
// against fresh reads, up to the configured number of attempts.
func (service *Service) execute(ctx context.Context, operation string, decide func(ctx context.Context, unit store.UnitOfWork) (movement, error)) (Outcome, error) {
	for attempt := 1; ; attempt++ {
		unit := service.units.Begin(ctx)
		staged, err := decide(ctx, unit)
		if err != nil {
			unit.Close()
			return Outcome{}, err
		}
		if staged.reason != DeclineNone {
			unit.Close()
			return staged.outcome(), nil
		}
		commitErr := unit.Commit(ctx)
		unit.Close()
		if commitErr == nil {
			return staged.outcome(), nil
		}
		if errors.Is(commitErr, store.ErrStale) && attempt < service.staleRetries {
			continue
		}
		return Outcome{}, normalizeStoreError(operation, subjectAccount, commitErr)
	}
}

// Funding stages the cash side of a deposit or withdrawal in the same unit of
// work as the ledger movement. For a deposit it debits the payer, for a
// withdrawal it credits the recipient. A non-empty reason declines the whole
// movement.
type Funding func(ctx context.Context, unit store.UnitOfWork, amount int64) (DeclineReason, error)

// Deposit credits amount to an unlocked account and records one deposit row.
// A non-positive amount, or one that would overflow the balance, is declined.
func (service *Service) Deposit(ctx context.Context, accountID uint, amount int64, description string) (Outcome, error) {
	started := time.Now()
	outcome, err := service.deposit(ctx, operationDeposit, accountID, amount, description, nil)
	service.logOperation(ctx, OperationLog{
		Operation: operationDeposit,
		AccountID: accountID,
		Amount:    amount,
		Reason:    outcome.Reason,
		Duration:  time.Since(started),
		Error:     err,
	})
	return outcome, err
}

// DepositFunded behaves like Deposit but lets fund pay for the credit inside
// the same commit.
func (service *Service) DepositFunded(ctx context.Context, accountID uint, amount int64, description string, fund Funding) (Outcome, error) {
	started := time.Now()
	outcome, err := service.deposit(ctx, operationDepositCash, accountID, amount, description, fund)
	service.logOperation(ctx, OperationLog{
		Operation: operationDepositCash,
		AccountID: accountID,
		Amount:    amount,
		Reason:    outcome.Reason,
		Duration:  time.Since(started),
		Error:     err,
	})
	return outcome, err
}

func (service *Service) deposit(ctx context.Context, operation string, accountID uint, amount int64, description string, fund Funding) (Outcome, error) {
	if amount <= 0 {
		return declined(DeclineNonPositiveAmount), nil
	}
	return service.execute(ctx, operation, func(ctx context.Context, unit store.UnitOfWork) (movement, error) {
		account, err := loadAccount(ctx, unit, operation, subjectAccount, accountID)
		if err != nil {
			return movement{}, err
		}
		if account.IsLocked {
			return movement{}, WrapError(operation, subjectAccount, codeLocked, ErrLocked)
		}
		if !CanCredit(account.Balance, amount) {
			return movement{reason: DeclineBalanceLimit, account: account}, nil
		}
		reason, err := settle(ctx, unit, fund, amount)
		if err != nil {
			return movement{}, err
		}
		if reason != DeclineNone {
			return movement{reason: reason, account: account}, nil
		}
		row := service.applyMutation(unit, account, entity.TransactionDeposit, amount, description, nil, nil)
		return movement{account: account, rows: []*entity.BankTransaction{row}}, nil
	})
}

// Withdraw debits amount from an unlocked account after verifying the PIN.
// Non-positive amounts and insufficient funds are declined.
func (service *Service) Withdraw(ctx context.Context, accountID uint, amount int64, pin string, description string) (Outcome, error) {
	started := time.Now()
	outcome, err := service.withdraw(ctx, operationWithdraw, accountID, amount, pin, description, nil)
	service.logOperation(ctx, OperationLog{
		Operation: operationWithdraw,
		AccountID: accountID,
		Amount:    amount,
		Reason:    outcome.Reason,
		Duration:  time.Since(started),
		Error:     err,
	})
	return outcome, err
}

// WithdrawFunded behaves like Withdraw but hands the debited amount to fund
// inside the same commit.
func (service *Service) WithdrawFunded(ctx context.Context, accountID uint, amount int64, pin string, description string, fund Funding) (Outcome, error) {
	started := time.Now()
	outcome, err := service.withdraw(ctx, operationWithdrawCash, accountID, amount, pin, description, fund)
	service.logOperation(ctx, OperationLog{
		Operation: operationWithdrawCash,
		AccountID: accountID,
		Amount:    amount,
		Reason:    outcome.Reason,
		Duration:  time.Since(started),
		Error:     err,
	})
	return outcome, err
}

func (service *Service) withdraw(ctx context.Context, operation string, accountID uint, amount int64, pin string, description string, fund Funding) (Outcome, error) {
	if amount <= 0 {
		return declined(DeclineNonPositiveAmount), nil
	}
	return service.execute(ctx, operation, func(ctx context.Context, unit store.UnitOfWork) (movement, error) {
		account, err := loadAccount(ctx, unit, operation, subjectAccount, accountID)
		if err != nil {
			return movement{}, err
		}
		if account.IsLocked {
			return movement{}, WrapError(operation, subjectAccount, codeLocked, ErrLocked)
		}
		if !service.hasher.Verify(pin, account.PINHash) {
			return movement{}, WrapError(operation, subjectPIN, codeAuth, ErrAuthFailed)
		}
		if account.Balance < amount {
			return movement{reason: DeclineInsufficientFunds, account: account}, nil
		}
		reason, err := settle(ctx, unit, fund, amount)
		if err != nil {
			return movement{}, err
		}
		if reason != DeclineNone {
			return movement{reason: reason, account: account}, nil
		}
		row := service.applyMutation(unit, account, entity.TransactionWithdrawal, amount, description, nil, nil)
		return movement{account: account, rows: []*entity.BankTransaction{row}}, nil
	})
}

func settle(ctx context.Context, unit store.UnitOfWork, fund Funding, amount int64) (DeclineReason, error) {
	if fund == nil {
		return DeclineNone, nil
	}
	return fund(ctx, unit, amount)
}

// Transfer moves amount between two accounts in one commit: both balance
// updates and both transaction rows persist together or not at all. The PIN
// is verified against the source account. Either account being locked fails
// with ErrLocked.
func (service *Service) Transfer(ctx context.Context, fromAccountID uint, toAccountID uint, amount int64, pin string) (Outcome, error) {
	started := time.Now()
	outcome, err := service.transfer(ctx, fromAccountID, toAccountID, amount, pin)
	service.logOperation(ctx, OperationLog{
		Operation:             operationTransfer,
		AccountID:             fromAccountID,
		CounterpartyAccountID: toAccountID,
		Amount:                amount,
		Reason:                outcome.Reason,
		Duration:              time.Since(started),
		Error:                 err,
	})
	return outcome, err
}

func (service *Service) transfer(ctx context.Context, fromAccountID uint, toAccountID uint, amount int64, pin string) (Outcome, error) {
	if amount <= 0 {
		return declined(DeclineNonPositiveAmount), nil
	}
	if fromAccountID == toAccountID {
		return declined(DeclineSameAccount), nil
	}
	return service.execute(ctx, operationTransfer, func(ctx context.Context, unit store.UnitOfWork) (movement, error) {
		source, err := loadAccount(ctx, unit, operationTransfer, subjectAccount, fromAccountID)
		if err != nil {
			return movement{}, err
		}
		destination, err := loadAccount(ctx, unit, operationTransfer, subjectDestination, toAccountID)
		if err != nil {
			return movement{}, err
		}
		if source.IsLocked {
			return movement{}, WrapError(operationTransfer, subjectAccount, codeLocked, ErrLocked)
		}
		if destination.IsLocked {
			return movement{}, WrapError(operationTransfer, subjectDestination, codeLocked, ErrLocked)
		}
		if !service.hasher.Verify(pin, source.PINHash) {
			return movement{}, WrapError(operationTransfer, subjectPIN, codeAuth, ErrAuthFailed)
		}
		if source.Balance < amount {
			return movement{reason: DeclineInsufficientFunds, account: source, counterparty: destination}, nil
		}
		if !CanCredit(destination.Balance, amount) {
			return movement{reason: DeclineBalanceLimit, account: source, counterparty: destination}, nil
		}
		transferID := uuid.New()
		debit := service.applyMutation(unit, source, entity.TransactionTransferOut, amount,
			fmt.Sprintf(transferToDescription, destination.AccountNumber), destination, &transferID)
		credit := service.applyMutation(unit, destination, entity.TransactionTransferIn, amount,
			fmt.Sprintf(transferFromDescription, source.AccountNumber), source, &transferID)
		return movement{account: source, counterparty: destination, rows: []*entity.BankTransaction{debit, credit}}, nil
	})
}

// applyMutation changes the balance and stages the matching transaction row.
func (service *Service) applyMutation(
	unit store.UnitOfWork,
	account *entity.BankAccount,
	transactionType entity.TransactionType,
	amount int64,
	description string,
	counterparty *entity.BankAccount,
	transferID *uuid.UUID,
) *entity.BankTransaction {
	previous := account.Balance
	signed := transactionType.Signed(amount)
	account.Balance = previous + signed
	unit.BankAccounts().MarkForUpdate(account)

	now := service.nowFn()
	row := &entity.BankTransaction{
		AccountID:       account.ID,
		Amount:          signed,
		Type:            transactionType,
		Description:     truncateDescription(description),
		PreviousBalance: previous,
		NewBalance:      account.Balance,
		TransferID:      transferID,
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	if counterparty != nil {
		counterpartyID := counterparty.ID
		row.CounterpartyAccountID = &counterpartyID
		metadata := transferMetadata{CounterpartyAccountNumber: counterparty.AccountNumber}
		if transferID != nil {
			metadata.TransferID = transferID.String()
		}
		if raw, err := json.Marshal(metadata); err == nil {
			row.Metadata = datatypes.JSON(raw)
		}
	}
	unit.BankTransactions().Add(row)
	return row
}

func truncateDescription(description string) string {
	if utf8.RuneCountInString(description) <= maxDescriptionRunes {
		return description
	}
	runes := []rune(description)
	return string(runes[:maxDescriptionRunes])
}
