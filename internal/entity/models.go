package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultMetadataJSON = "{}"

var (
	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrImmutableTransaction   = errors.New("bank transactions are append-only")
)

// AccountType classifies a bank account.
type AccountType string

const (
	AccountTypePersonal AccountType = "personal"
	AccountTypeBusiness AccountType = "business"
	AccountTypeShared   AccountType = "shared"
)

// ParseAccountType validates raw input; empty input yields the personal type.
func ParseAccountType(raw string) (AccountType, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch AccountType(trimmed) {
	case "":
		return AccountTypePersonal, nil
	case AccountTypePersonal, AccountTypeBusiness, AccountTypeShared:
		return AccountType(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, raw)
	}
}

func (accountType AccountType) String() string {
	return string(accountType)
}

// TransactionType describes the balance mutation a BankTransaction records.
type TransactionType string

const (
	TransactionDeposit     TransactionType = "deposit"
	TransactionWithdrawal  TransactionType = "withdrawal"
	TransactionTransferOut TransactionType = "transfer_out"
	TransactionTransferIn  TransactionType = "transfer_in"
)

// ParseTransactionType validates a stored or user supplied transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionDeposit, TransactionWithdrawal, TransactionTransferOut, TransactionTransferIn:
		return TransactionType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
}

func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Signed applies the direction of the transaction type to a positive magnitude.
func (transactionType TransactionType) Signed(magnitude int64) int64 {
	switch transactionType {
	case TransactionWithdrawal, TransactionTransferOut:
		return -magnitude
	default:
		return magnitude
	}
}

// Player is a registered game identity.
type Player struct {
	Base
	Username        string `gorm:"size:32;not null;uniqueIndex"`
	PasswordHash    string `gorm:"not null"`
	Email           string `gorm:"size:255;not null;uniqueIndex"`
	CharacterName   string `gorm:"size:64;not null"`
	Cash            int64  `gorm:"not null;check:cash >= 0"`
	BankMoney       int64  `gorm:"not null"`
	Job             string `gorm:"size:64"`
	JobLevel        int    `gorm:"not null"`
	Experience      int64  `gorm:"not null"`
	AdminLevel      int    `gorm:"not null"`
	LastLogin       *time.Time
	PlaytimeMinutes int64 `gorm:"not null"`
	IsBanned        bool  `gorm:"not null"`
	BanReason       string
	BanExpires      *time.Time
}

func (Player) TableName() string { return "players" }

// BankAccount holds a non-negative balance owned by a player.
type BankAccount struct {
	Base
	OwnerID       uint        `gorm:"not null;index"`
	AccountNumber string      `gorm:"size:20;not null;uniqueIndex"`
	Balance       int64       `gorm:"not null;check:balance >= 0"`
	AccountType   AccountType `gorm:"size:32;not null"`
	PINHash       string      `gorm:"column:pin_hash;not null"`
	IsLocked      bool        `gorm:"not null"`
}

func (BankAccount) TableName() string { return "bank_accounts" }

// BankTransaction is one append-only balance mutation of an account.
type BankTransaction struct {
	Base
	AccountID             uint            `gorm:"not null;index:idx_bank_transactions_account_created,priority:1"`
	Amount                int64           `gorm:"not null"`
	Type                  TransactionType `gorm:"size:16;not null"`
	Description           string          `gorm:"size:255"`
	PreviousBalance       int64           `gorm:"not null"`
	NewBalance            int64           `gorm:"not null"`
	CounterpartyAccountID *uint           `gorm:"index"`
	TransferID            *uuid.UUID      `gorm:"type:uuid;index"`
	Metadata              datatypes.JSON  `gorm:"not null"`
}

func (BankTransaction) TableName() string { return "bank_transactions" }

func (transaction *BankTransaction) BeforeCreate(tx *gorm.DB) error {
	if len(transaction.Metadata) == 0 {
		transaction.Metadata = datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return nil
}

func (transaction *BankTransaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

func (transaction *BankTransaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

// Balanced reports whether the recorded balances agree with the signed amount.
func (transaction BankTransaction) Balanced() bool {
	return transaction.NewBalance-transaction.PreviousBalance == transaction.Amount
}

// Vehicle is a player owned car with its damage state.
type Vehicle struct {
	Base
	ModelHash      int64   `gorm:"not null"`
	Plate          string  `gorm:"size:16;not null;uniqueIndex"`
	OwnerID        uint    `gorm:"not null;index"`
	PrimaryColor   int     `gorm:"not null"`
	SecondaryColor int     `gorm:"not null"`
	EngineHealth   float64 `gorm:"not null"`
	BodyHealth     float64 `gorm:"not null"`
	Fuel           float64 `gorm:"not null"`
	Mileage        float64 `gorm:"not null"`
	PositionX      float32 `gorm:"not null"`
	PositionY      float32 `gorm:"not null"`
	PositionZ      float32 `gorm:"not null"`
	Rotation       float32 `gorm:"not null"`
	Price          int64   `gorm:"not null"`
	IsLocked       bool    `gorm:"not null"`
	IsImpounded    bool    `gorm:"not null"`
	WindowState    uint8   `gorm:"not null"`
	DoorState      uint8   `gorm:"not null"`
	RepairCost     int64   `gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

// VehicleModification is a tuning part installed on a vehicle.
type VehicleModification struct {
	Base
	VehicleID uint   `gorm:"not null;index"`
	ModType   int    `gorm:"not null"`
	ModName   string `gorm:"size:64;not null"`
	Cost      int64  `gorm:"not null"`
	Level     int    `gorm:"not null"`
}

func (VehicleModification) TableName() string { return "vehicle_modifications" }

// Property is a purchasable building.
type Property struct {
	Base
	Address      string  `gorm:"size:128;not null;uniqueIndex"`
	OwnerID      *uint   `gorm:"index"`
	PropertyType string  `gorm:"size:32;not null"`
	Price        int64   `gorm:"not null"`
	RentCost     int64   `gorm:"not null"`
	EntranceX    float32 `gorm:"not null"`
	EntranceY    float32 `gorm:"not null"`
	EntranceZ    float32 `gorm:"not null"`
	InteriorX    float32 `gorm:"not null"`
	InteriorY    float32 `gorm:"not null"`
	InteriorZ    float32 `gorm:"not null"`
	ForSale      bool    `gorm:"not null;index"`
	SafeMoney    int64   `gorm:"not null;check:safe_money >= 0"`
}

func (Property) TableName() string { return "properties" }

// Job is an employment a player can take.
type Job struct {
	Base
	Name          string `gorm:"size:64;not null;uniqueIndex"`
	Description   string `gorm:"size:255"`
	BaseSalary    int64  `gorm:"not null"`
	RequiredLevel int    `gorm:"not null"`
	Color         string `gorm:"size:7;not null"`
	IsActive      bool   `gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }

// All returns one zero value of every entity kind, in dependency order.
func All() []any {
	return []any{
		&Player{},
		&Job{},
		&Property{},
		&Vehicle{},
		&VehicleModification{},
		&BankAccount{},
		&BankTransaction{},
	}
}
