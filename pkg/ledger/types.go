package ledger

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
)

// SecretHasher produces and checks one-way digests. The ledger never inspects
// the algorithm behind it.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, digest string) bool
}

// PIN is a validated account PIN of 4 to 8 ASCII digits.
type PIN struct {
	value string
}

// NewPIN validates raw PIN input. Whitespace is not trimmed; it fails the
// digits-only check.
func NewPIN(raw string) (PIN, error) {
	if len(raw) < pinMinDigits || len(raw) > pinMaxDigits {
		return PIN{}, fmt.Errorf("%w: must have %d to %d digits", ErrInvalidPIN, pinMinDigits, pinMaxDigits)
	}
	for _, symbol := range raw {
		if symbol < '0' || symbol > '9' {
			return PIN{}, fmt.Errorf("%w: digits only", ErrInvalidPIN)
		}
	}
	return PIN{value: raw}, nil
}

func (pin PIN) String() string {
	return pin.value
}

// DeclineReason explains why a money movement was declined.
type DeclineReason string

const (
	DeclineNone              DeclineReason = ""
	DeclineNonPositiveAmount DeclineReason = "non_positive_amount"
	DeclineInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineSameAccount       DeclineReason = "same_account"
	DeclineBalanceLimit      DeclineReason = "balance_limit"
)

// CanCredit reports whether amount can be added to a non-negative balance
// without exceeding the largest representable balance.
func CanCredit(balance int64, amount int64) bool {
	return amount >= 0 && balance >= 0 && amount <= math.MaxInt64-balance
}

// Outcome is the result of a money movement. A declined outcome is a normal
// business result, not an error; callers must branch on Approved.
type Outcome struct {
	Approved     bool
	Reason       DeclineReason
	Account      entity.BankAccount
	Counterparty *entity.BankAccount
	Transactions []entity.BankTransaction
}

// Declined reports whether the movement was rejected by a business rule.
func (outcome Outcome) Declined() bool {
	return !outcome.Approved
}

func declined(reason DeclineReason) Outcome {
	return Outcome{Reason: reason}
}

// AccountNumberGenerator produces candidate account numbers.
type AccountNumberGenerator func(now time.Time) string

// RandomAccountNumber returns ACC, the four-digit year and a six-digit random suffix.
func RandomAccountNumber(now time.Time) string {
	return fmt.Sprintf("%s%04d%06d", accountNumberPrefix, now.Year(), accountNumberSuffixMinimum+rand.IntN(accountNumberSuffixSpan))
}
