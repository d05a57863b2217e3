package httpapi

import (
	"encoding/json"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
)

type registerRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Email         string `json:"email" binding:"required"`
	CharacterName string `json:"character_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createAccountRequest struct {
	PIN         string `json:"pin" binding:"required"`
	AccountType string `json:"account_type"`
}

type depositRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	PIN         string `json:"pin" binding:"required"`
	Description string `json:"description"`
}

type transferRequest struct {
	FromAccountID   uint   `json:"from_account_id" binding:"required"`
	ToAccountID     uint   `json:"to_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          int64  `json:"amount"`
	PIN             string `json:"pin" binding:"required"`
}

type sessionPayload struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Player    playerPayload `json:"player"`
}

type playerPayload struct {
	ID            uint       `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	CharacterName string     `json:"character_name"`
	Cash          int64      `json:"cash"`
	Job           string     `json:"job,omitempty"`
	JobLevel      int        `json:"job_level"`
	Experience    int64      `json:"experience"`
	AdminLevel    int        `json:"admin_level"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newPlayerPayload(player entity.Player) playerPayload {
	return playerPayload{
		ID:            player.ID,
		Username:      player.Username,
		Email:         player.Email,
		CharacterName: player.CharacterName,
		Cash:          player.Cash,
		Job:           player.Job,
		JobLevel:      player.JobLevel,
		Experience:    player.Experience,
		AdminLevel:    player.AdminLevel,
		LastLogin:     player.LastLogin,
		CreatedAt:     player.CreatedAt,
	}
}

type accountPayload struct {
	ID            uint      `json:"id"`
	OwnerID       uint      `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	Balance       int64     `json:"balance"`
	AccountType   string    `json:"account_type"`
	IsLocked      bool      `json:"is_locked"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAccountPayload(account entity.BankAccount) accountPayload {
	return accountPayload{
		ID:            account.ID,
		OwnerID:       account.OwnerID,
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		AccountType:   account.AccountType.String(),
		IsLocked:      account.IsLocked,
		CreatedAt:     account.CreatedAt,
	}
}

type transactionPayload struct {
	ID                    uint            `json:"id"`
	AccountID             uint            `json:"account_id"`
	Type                  string          `json:"type"`
	Amount                int64           `json:"amount"`
	Description           string          `json:"description"`
	PreviousBalance       int64           `json:"previous_balance"`
	NewBalance            int64           `json:"new_balance"`
	CounterpartyAccountID *uint           `json:"counterparty_account_id,omitempty"`
	TransferID            string          `json:"transfer_id,omitempty"`
	Metadata              json.RawMessage `json:"metadata"`
	CreatedAt             time.Time       `json:"created_at"`
}

func newTransactionPayloads(rows []entity.BankTransaction) []transactionPayload {
	payloads := make([]transactionPayload, 0, len(rows))
	for _, row := range rows {
		payload := transactionPayload{
			ID:                    row.ID,
			AccountID:             row.AccountID,
			Type:                  row.Type.String(),
			Amount:                row.Amount,
			Description:           row.Description,
			PreviousBalance:       row.PreviousBalance,
			NewBalance:            row.NewBalance,
			CounterpartyAccountID: row.CounterpartyAccountID,
			Metadata:              json.RawMessage(row.Metadata),
			CreatedAt:             row.CreatedAt,
		}
		if len(payload.Metadata) == 0 {
			payload.Metadata = json.RawMessage("{}")
		}
		if row.TransferID != nil {
			payload.TransferID = row.TransferID.String()
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

type outcomePayload struct {
	Status       string               `json:"status"`
	Reason       string               `json:"reason,omitempty"`
	Account      *accountPayload      `json:"account,omitempty"`
	Counterparty *accountPayload      `json:"counterparty,omitempty"`
	Transactions []transactionPayload `json:"transactions"`
	Cash         *int64               `json:"cash,omitempty"`
}

func newOutcomePayload(outcome ledger.Outcome) outcomePayload {
	payload := outcomePayload{
		Status:       ledger.OperationStatusOK,
		Transactions: newTransactionPayloads(outcome.Transactions),
	}
	if outcome.Declined() {
		payload.Status = ledger.OperationStatusDeclined
		payload.Reason = string(outcome.Reason)
	}
	if outcome.Account.ID != 0 {
		account := newAccountPayload(outcome.Account)
		payload.Account = &account
	}
	if outcome.Counterparty != nil {
		counterparty := newAccountPayload(*outcome.Counterparty)
		payload.Counterparty = &counterparty
	}
	return payload
}

func newCashOutcomePayload(movement game.CashMovement) outcomePayload {
	payload := newOutcomePayload(movement.Outcome)
	if movement.Player.ID != 0 {
		cash := movement.Player.Cash
		payload.Cash = &cash
	}
	return payload
}

type jobPayload struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	BaseSalary    int64  `json:"base_salary"`
	RequiredLevel int    `json:"required_level"`
	Color         string `json:"color"`
}

type vehiclePayload struct {
	ID           uint    `json:"id"`
	ModelHash    int64   `json:"model_hash"`
	Plate        string  `json:"plate"`
	EngineHealth float64 `json:"engine_health"`
	BodyHealth   float64 `json:"body_health"`
	Fuel         float64 `json:"fuel"`
	IsLocked     bool    `json:"is_locked"`
	IsImpounded  bool    `json:"is_impounded"`
	RepairCost   int64   `json:"repair_cost"`
}

type propertyPayload struct {
	ID           uint   `json:"id"`
	Address      string `json:"address"`
	PropertyType string `json:"property_type"`
	Price        int64  `json:"price"`
	RentCost     int64  `json:"rent_cost"`
	OwnerID      *uint  `json:"owner_id,omitempty"`
	ForSale      bool   `json:"for_sale"`
}

func newPropertyPayload(property entity.Property) propertyPayload {
	return propertyPayload{
		ID:           property.ID,
		Address:      property.Address,
		PropertyType: property.PropertyType,
		Price:        property.Price,
		RentCost:     property.RentCost,
		OwnerID:      property.OwnerID,
		ForSale:      property.ForSale,
	}
}
