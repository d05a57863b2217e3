// Package game holds the player, vehicle, property and job services that sit
// next to the ledger on the same units of work.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
)

// Errors specific to game services. Storage failures are reported with the
// ledger taxonomy (ledger.ErrNotFound, ledger.ErrConflict, ledger.ErrPersistence).
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrBanned        = errors.New("player banned")
	ErrNotForSale    = errors.New("property not for sale")
	ErrNotOwner      = errors.New("not the owner")
	ErrInactiveJob   = errors.New("job inactive")
	ErrLevelTooLow   = errors.New("player level too low")
	ErrInvalidConfig = errors.New("invalid game service config")
)

const (
	operationRegister     = "register"
	operationLogin        = "login"
	operationPlayer       = "player"
	operationVehicle      = "vehicle"
	operationProperty     = "property"
	operationBuyProperty  = "buy_property"
	operationSellProperty = "sell_property"
	operationPropertySafe = "property_safe"
	operationJob          = "job"
	operationCashDeposit  = "cash_deposit"
	operationCashWithdraw = "cash_withdraw"

	subjectPlayer       = "player"
	subjectVehicle      = "vehicle"
	subjectModification = "modification"
	subjectProperty     = "property"
	subjectJob          = "job"
	subjectCredentials  = "credentials"
	subjectAmount       = "amount"

	codeInvalid      = "invalid"
	codeAuth         = "auth_failed"
	codeBanned       = "banned"
	codeForbidden    = "forbidden"
	codeConflict     = "conflict"
	codeBalanceLimit = "balance_limit"
)

// DeclineInsufficientCash declines a bank deposit the player cannot cover
// from cash on hand.
const DeclineInsufficientCash ledger.DeclineReason = "insufficient_cash"

// CashResult reports a cash movement that can be declined.
type CashResult struct {
	Approved bool
	Reason   ledger.DeclineReason
	Player   entity.Player
}

// PropertyResult reports a property purchase or safe movement.
type PropertyResult struct {
	Approved bool
	Reason   ledger.DeclineReason
	Player   entity.Player
	Property entity.Property
}

func invalid(operation string, subject string, detail string) error {
	return ledger.WrapError(operation, subject, codeInvalid, errors.Join(ErrInvalidInput, errors.New(detail)))
}

// load reads one record by id through the unit's repository for T.
func load[T entity.Model](ctx context.Context, repository store.Repository[T], operation string, subject string, id uint) (*T, error) {
	record, err := repository.GetByID(ctx, id)
	if err != nil {
		return nil, ledger.NormalizeStoreError(operation, subject, err)
	}
	return record, nil
}

// commit flushes unit and maps storage failures onto the ledger taxonomy.
func commit(ctx context.Context, unit store.UnitOfWork, operation string, subject string) error {
	if err := unit.Commit(ctx); err != nil {
		return ledger.NormalizeStoreError(operation, subject, err)
	}
	return nil
}

func derefAll[T any](records []*T) []T {
	values := make([]T, 0, len(records))
	for _, record := range records {
		values = append(values, *record)
	}
	return values
}

func stamp(record *entity.Base, now time.Time) {
	record.CreatedAt = now
	record.UpdatedAt = now
}
