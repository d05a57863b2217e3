package game

import (
	"context"
	"fmt"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"go.uber.org/zap"
)

// CashMovement reports money moved between a player's cash and a bank account.
type CashMovement struct {
	Outcome ledger.Outcome
	Player  entity.Player
}

// Teller moves money between cash on hand and bank accounts. The cash change
// and the ledger movement commit together.
type Teller struct {
	ledger *ledger.Service
	logger *zap.Logger
}

// NewTeller constructs a Teller over the ledger service.
func NewTeller(ledgerService *ledger.Service, logger *zap.Logger) (*Teller, error) {
	if ledgerService == nil {
		return nil, fmt.Errorf("%w: ledger service is nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Teller{ledger: ledgerService, logger: logger}, nil
}

// DepositCash moves amount from the player's cash into the account. Cash on
// hand below amount is declined with DeclineInsufficientCash.
func (teller *Teller) DepositCash(ctx context.Context, playerID uint, accountID uint, amount int64, description string) (CashMovement, error) {
	var payer *entity.Player
	outcome, err := teller.ledger.DepositFunded(ctx, accountID, amount, description,
		func(ctx context.Context, unit store.UnitOfWork, amount int64) (ledger.DeclineReason, error) {
			player, err := load(ctx, unit.Players(), operationCashDeposit, subjectPlayer, playerID)
			if err != nil {
				return ledger.DeclineNone, err
			}
			payer = player
			if player.Cash < amount {
				return DeclineInsufficientCash, nil
			}
			player.Cash -= amount
			unit.Players().MarkForUpdate(player)
			return ledger.DeclineNone, nil
		})
	if err != nil {
		return CashMovement{}, err
	}
	teller.logger.Debug("cash deposited",
		zap.Uint("player_id", playerID),
		zap.Uint("account_id", accountID),
		zap.Int64("amount", amount),
		zap.String("reason", string(outcome.Reason)),
	)
	return newCashMovement(outcome, payer), nil
}

// WithdrawCash moves amount from the account into the player's cash after the
// ledger verifies the PIN. Cash that would overflow is declined with
// ledger.DeclineBalanceLimit.
func (teller *Teller) WithdrawCash(ctx context.Context, playerID uint, accountID uint, amount int64, pin string, description string) (CashMovement, error) {
	var recipient *entity.Player
	outcome, err := teller.ledger.WithdrawFunded(ctx, accountID, amount, pin, description,
		func(ctx context.Context, unit store.UnitOfWork, amount int64) (ledger.DeclineReason, error) {
			player, err := load(ctx, unit.Players(), operationCashWithdraw, subjectPlayer, playerID)
			if err != nil {
				return ledger.DeclineNone, err
			}
			recipient = player
			if !ledger.CanCredit(player.Cash, amount) {
				return ledger.DeclineBalanceLimit, nil
			}
			player.Cash += amount
			unit.Players().MarkForUpdate(player)
			return ledger.DeclineNone, nil
		})
	if err != nil {
		return CashMovement{}, err
	}
	teller.logger.Debug("cash withdrawn",
		zap.Uint("player_id", playerID),
		zap.Uint("account_id", accountID),
		zap.Int64("amount", amount),
		zap.String("reason", string(outcome.Reason)),
	)
	return newCashMovement(outcome, recipient), nil
}

func newCashMovement(outcome ledger.Outcome, player *entity.Player) CashMovement {
	movement := CashMovement{Outcome: outcome}
	if player != nil {
		movement.Player = *player
	}
	return movement
}
