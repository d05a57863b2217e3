package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger   *zap.Logger
	services Services
	cfg      Config
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

// respondError writes the mapped error and logs server-side failures with
// the underlying storage cause.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	mapped := mapError(err)
	if mapped.status >= http.StatusInternalServerError {
		handler.logger.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(requestIDContextKey)),
			zap.Error(err),
			zap.NamedError("cause", ledger.DiagnosticCause(err)),
		)
	}
	ctx.JSON(mapped.status, errorResponse(mapped.code, mapped.message))
}

func (handler *httpHandler) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected username, password and email"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	player, err := handler.services.Players.Register(requestCtx, game.Registration{
		Username:      request.Username,
		Password:      request.Password,
		Email:         request.Email,
		CharacterName: request.CharacterName,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"player": newPlayerPayload(player)})
}

func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected username and password"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	session, err := handler.services.Players.Login(requestCtx, request.Username, request.Password)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sessionPayload{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Player:    newPlayerPayload(session.Player),
	})
}

func (handler *httpHandler) handleMe(ctx *gin.Context) {
	claims := getClaims(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	player, err := handler.services.Players.GetPlayer(requestCtx, claims.PlayerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"player": newPlayerPayload(player)})
}

func (handler *httpHandler) handleListAccounts(ctx *gin.Context) {
	claims := getClaims(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	accounts, err := handler.services.Ledger.PlayerAccounts(requestCtx, claims.PlayerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]accountPayload, 0, len(accounts))
	for _, account := range accounts {
		payloads = append(payloads, newAccountPayload(account))
	}
	ctx.JSON(http.StatusOK, gin.H{"accounts": payloads})
}

func (handler *httpHandler) handleCreateAccount(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request createAccountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected pin"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, err := handler.services.Ledger.CreateAccount(requestCtx, claims.PlayerID, request.PIN, request.AccountType)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleGetAccount(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, ok := handler.ownedAccount(ctx, requestCtx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleHistory(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_limit", "limit must be an integer"))
			return
		}
		limit = parsed
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, ok := handler.ownedAccount(ctx, requestCtx)
	if !ok {
		return
	}
	rows, err := handler.services.Ledger.TransactionHistory(requestCtx, account.ID, limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": newTransactionPayloads(rows)})
}

func (handler *httpHandler) handleDeposit(ctx *gin.Context) {
	var request depositRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected amount"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, ok := handler.ownedAccount(ctx, requestCtx)
	if !ok {
		return
	}
	movement, err := handler.services.Teller.DepositCash(requestCtx, getClaims(ctx).PlayerID, account.ID, request.Amount, request.Description)
	handler.respondCashOutcome(ctx, movement, err)
}

// handleGrant credits an account without taking cash from anyone.
func (handler *httpHandler) handleGrant(ctx *gin.Context) {
	var request depositRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected amount"))
		return
	}
	accountID, ok := pathID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	outcome, err := handler.services.Ledger.Deposit(requestCtx, accountID, request.Amount, request.Description)
	if err == nil && outcome.Approved {
		handler.logger.Info("account credited by admin",
			zap.Uint("account_id", accountID),
			zap.Int64("amount", request.Amount),
			zap.Uint("admin_id", getClaims(ctx).PlayerID),
		)
	}
	handler.respondOutcome(ctx, outcome, err)
}

func (handler *httpHandler) handleWithdraw(ctx *gin.Context) {
	var request withdrawRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected amount and pin"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, ok := handler.ownedAccount(ctx, requestCtx)
	if !ok {
		return
	}
	movement, err := handler.services.Teller.WithdrawCash(requestCtx, getClaims(ctx).PlayerID, account.ID, request.Amount, request.PIN, request.Description)
	handler.respondCashOutcome(ctx, movement, err)
}

func (handler *httpHandler) handleTransfer(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request transferRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected from_account_id, destination, amount and pin"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	source, err := handler.services.Ledger.GetAccount(requestCtx, request.FromAccountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !canAccess(claims, source) {
		handler.respondError(ctx, game.ErrNotOwner)
		return
	}
	destinationID := request.ToAccountID
	if number := strings.TrimSpace(request.ToAccountNumber); number != "" {
		destination, err := handler.services.Ledger.GetAccountByNumber(requestCtx, number)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		destinationID = destination.ID
	}
	if destinationID == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected to_account_id or to_account_number"))
		return
	}
	outcome, err := handler.services.Ledger.Transfer(requestCtx, source.ID, destinationID, request.Amount, request.PIN)
	handler.respondOutcome(ctx, outcome, err)
}

func (handler *httpHandler) handleLockAccount(ctx *gin.Context) {
	handler.setLocked(ctx, handler.services.Ledger.LockAccount)
}

func (handler *httpHandler) handleUnlockAccount(ctx *gin.Context) {
	handler.setLocked(ctx, handler.services.Ledger.UnlockAccount)
}

func (handler *httpHandler) setLocked(ctx *gin.Context, transition func(context.Context, uint) (entity.BankAccount, error)) {
	accountID, ok := pathID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	account, err := transition(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.logger.Info("account lock changed",
		zap.Uint("account_id", account.ID),
		zap.Bool("locked", account.IsLocked),
		zap.Uint("admin_id", getClaims(ctx).PlayerID),
	)
	ctx.JSON(http.StatusOK, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleJobs(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	jobs, err := handler.services.Jobs.ActiveJobs(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]jobPayload, 0, len(jobs))
	for _, job := range jobs {
		payloads = append(payloads, jobPayload{
			ID:            job.ID,
			Name:          job.Name,
			Description:   job.Description,
			BaseSalary:    job.BaseSalary,
			RequiredLevel: job.RequiredLevel,
			Color:         job.Color,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": payloads})
}

func (handler *httpHandler) handleVehicles(ctx *gin.Context) {
	claims := getClaims(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	vehicles, err := handler.services.Vehicles.VehiclesOwnedBy(requestCtx, claims.PlayerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]vehiclePayload, 0, len(vehicles))
	for _, vehicle := range vehicles {
		payloads = append(payloads, vehiclePayload{
			ID:           vehicle.ID,
			ModelHash:    vehicle.ModelHash,
			Plate:        vehicle.Plate,
			EngineHealth: vehicle.EngineHealth,
			BodyHealth:   vehicle.BodyHealth,
			Fuel:         vehicle.Fuel,
			IsLocked:     vehicle.IsLocked,
			IsImpounded:  vehicle.IsImpounded,
			RepairCost:   vehicle.RepairCost,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"vehicles": payloads})
}

func (handler *httpHandler) handleAvailableProperties(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	properties, err := handler.services.Properties.AvailableProperties(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]propertyPayload, 0, len(properties))
	for _, property := range properties {
		payloads = append(payloads, newPropertyPayload(property))
	}
	ctx.JSON(http.StatusOK, gin.H{"properties": payloads})
}

func (handler *httpHandler) handleBuyProperty(ctx *gin.Context) {
	claims := getClaims(ctx)
	propertyID, ok := pathID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.services.Properties.Buy(requestCtx, propertyID, claims.PlayerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	status := ledger.OperationStatusOK
	if !result.Approved {
		status = ledger.OperationStatusDeclined
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":   status,
		"reason":   string(result.Reason),
		"cash":     result.Player.Cash,
		"property": newPropertyPayload(result.Property),
	})
}

func (handler *httpHandler) respondOutcome(ctx *gin.Context, outcome ledger.Outcome, err error) {
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newOutcomePayload(outcome))
}

func (handler *httpHandler) respondCashOutcome(ctx *gin.Context, movement game.CashMovement, err error) {
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCashOutcomePayload(movement))
}

// ownedAccount loads the account named by the :id path segment and checks
// that the caller owns it or is an admin. It writes the response on failure.
func (handler *httpHandler) ownedAccount(ctx *gin.Context, requestCtx context.Context) (entity.BankAccount, bool) {
	accountID, ok := pathID(ctx)
	if !ok {
		return entity.BankAccount{}, false
	}
	account, err := handler.services.Ledger.GetAccount(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return entity.BankAccount{}, false
	}
	if !canAccess(getClaims(ctx), account) {
		handler.respondError(ctx, game.ErrNotOwner)
		return entity.BankAccount{}, false
	}
	return account, true
}

func canAccess(claims *game.Claims, account entity.BankAccount) bool {
	if claims == nil {
		return false
	}
	return claims.AdminLevel > 0 || account.OwnerID == claims.PlayerID
}

func pathID(ctx *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || parsed == 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_id", "id must be a positive integer"))
		return 0, false
	}
	return uint(parsed), true
}
