package game

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"go.uber.org/zap"
)

const (
	DefaultStartingCash = 5000

	minPasswordLength = 6
	maxPasswordLength = 72
	maxEmailLength    = 255
	maxCharacterName  = 64
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// Registration is the input of PlayerService.Register.
type Registration struct {
	Username      string
	Password      string
	Email         string
	CharacterName string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Player    entity.Player
}

// PlayerService registers and authenticates players and manages their cash.
type PlayerService struct {
	units        store.Factory
	passwords    ledger.SecretHasher
	tokens       *TokenIssuer
	now          func() time.Time
	startingCash int64
	logger       *zap.Logger
}

// PlayerOption configures a PlayerService.
type PlayerOption func(*PlayerService)

func WithStartingCash(amount int64) PlayerOption {
	return func(service *PlayerService) {
		if amount >= 0 {
			service.startingCash = amount
		}
	}
}

func WithPlayerLogger(logger *zap.Logger) PlayerOption {
	return func(service *PlayerService) {
		if logger != nil {
			service.logger = logger
		}
	}
}

func NewPlayerService(units store.Factory, passwords ledger.SecretHasher, tokens *TokenIssuer, now func() time.Time, options ...PlayerOption) (*PlayerService, error) {
	switch {
	case units == nil:
		return nil, fmt.Errorf("%w: unit of work factory is nil", ErrInvalidConfig)
	case passwords == nil:
		return nil, fmt.Errorf("%w: password hasher is nil", ErrInvalidConfig)
	case tokens == nil:
		return nil, fmt.Errorf("%w: token issuer is nil", ErrInvalidConfig)
	case now == nil:
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	service := &PlayerService{
		units:        units,
		passwords:    passwords,
		tokens:       tokens,
		now:          now,
		startingCash: DefaultStartingCash,
		logger:       zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Register creates a player with the starting cash. Usernames and emails are
// unique; either being taken fails with ledger.ErrConflict.
func (service *PlayerService) Register(ctx context.Context, registration Registration) (entity.Player, error) {
	username := strings.TrimSpace(registration.Username)
	email := strings.ToLower(strings.TrimSpace(registration.Email))
	if !usernamePattern.MatchString(username) {
		return entity.Player{}, invalid(operationRegister, subjectPlayer, "username must be 3 to 32 letters, digits or underscores")
	}
	if len(registration.Password) < minPasswordLength || len(registration.Password) > maxPasswordLength {
		return entity.Player{}, invalid(operationRegister, subjectCredentials, fmt.Sprintf("password must have %d to %d bytes", minPasswordLength, maxPasswordLength))
	}
	if len(email) > maxEmailLength {
		return entity.Player{}, invalid(operationRegister, subjectPlayer, "email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return entity.Player{}, invalid(operationRegister, subjectPlayer, "email is malformed")
	}
	characterName := strings.TrimSpace(registration.CharacterName)
	if characterName == "" {
		characterName = username
	}
	if len(characterName) > maxCharacterName {
		return entity.Player{}, invalid(operationRegister, subjectPlayer, "character name is too long")
	}

	digest, err := service.passwords.Hash(registration.Password)
	if err != nil {
		return entity.Player{}, ledger.WrapError(operationRegister, subjectCredentials, codeInvalid, err)
	}

	unit := service.units.Begin(ctx)
	defer unit.Close()
	taken, err := unit.Players().Count(ctx, store.Or(
		store.Eq(entity.ColumnUsername, username),
		store.Eq(entity.ColumnEmail, email),
	))
	if err != nil {
		return entity.Player{}, ledger.NormalizeStoreError(operationRegister, subjectPlayer, err)
	}
	if taken > 0 {
		return entity.Player{}, ledger.WrapError(operationRegister, subjectPlayer, codeConflict, fmt.Errorf("%w: username or email already registered", ledger.ErrConflict))
	}

	player := &entity.Player{
		Username:      username,
		PasswordHash:  digest,
		Email:         email,
		CharacterName: characterName,
		Cash:          service.startingCash,
		JobLevel:      1,
	}
	stamp(&player.Base, service.now())
	unit.Players().Add(player)
	if err := commit(ctx, unit, operationRegister, subjectPlayer); err != nil {
		return entity.Player{}, err
	}
	service.logger.Info("player registered", zap.Uint("player_id", player.ID), zap.String("username", player.Username))
	return *player, nil
}

// Login verifies credentials, records the login time and issues a token.
// Unknown usernames and wrong passwords are indistinguishable.
func (service *PlayerService) Login(ctx context.Context, username string, password string) (Session, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()

	player, err := unit.Players().FirstMatching(ctx, store.Eq(entity.ColumnUsername, strings.TrimSpace(username)))
	if err != nil {
		normalized := ledger.NormalizeStoreError(operationLogin, subjectPlayer, err)
		if errors.Is(normalized, ledger.ErrNotFound) {
			return Session{}, ledger.WrapError(operationLogin, subjectCredentials, codeAuth, ledger.ErrAuthFailed)
		}
		return Session{}, normalized
	}
	if !service.passwords.Verify(password, player.PasswordHash) {
		return Session{}, ledger.WrapError(operationLogin, subjectCredentials, codeAuth, ledger.ErrAuthFailed)
	}

	now := service.now()
	if player.IsBanned {
		if player.BanExpires == nil || player.BanExpires.After(now) {
			return Session{}, ledger.WrapError(operationLogin, subjectPlayer, codeBanned, fmt.Errorf("%w: %s", ErrBanned, player.BanReason))
		}
		clearBan(player)
	}
	lastLogin := now.UTC()
	player.LastLogin = &lastLogin
	unit.Players().MarkForUpdate(player)
	if err := commit(ctx, unit, operationLogin, subjectPlayer); err != nil {
		return Session{}, err
	}

	token, expiresAt, err := service.tokens.Issue(*player)
	if err != nil {
		return Session{}, err
	}
	service.logger.Info("player logged in", zap.Uint("player_id", player.ID))
	return Session{Token: token, ExpiresAt: expiresAt, Player: *player}, nil
}

// GetPlayer returns the player with id.
func (service *PlayerService) GetPlayer(ctx context.Context, playerID uint) (entity.Player, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	player, err := load(ctx, unit.Players(), operationPlayer, subjectPlayer, playerID)
	if err != nil {
		return entity.Player{}, err
	}
	return *player, nil
}

// AddCash credits a positive amount of cash. A credit that would overflow
// the cash balance fails with ledger.ErrInvalidBalance.
func (service *PlayerService) AddCash(ctx context.Context, playerID uint, amount int64) (entity.Player, error) {
	if amount <= 0 {
		return entity.Player{}, invalid(operationPlayer, subjectAmount, "amount must be positive")
	}
	return service.update(ctx, playerID, func(player *entity.Player) error {
		if !ledger.CanCredit(player.Cash, amount) {
			return ledger.WrapError(operationPlayer, subjectAmount, codeBalanceLimit, ledger.ErrInvalidBalance)
		}
		player.Cash += amount
		return nil
	})
}

// DeductCash debits cash. Insufficient cash is declined, not an error.
func (service *PlayerService) DeductCash(ctx context.Context, playerID uint, amount int64) (CashResult, error) {
	if amount <= 0 {
		return CashResult{Reason: ledger.DeclineNonPositiveAmount}, nil
	}
	unit := service.units.Begin(ctx)
	defer unit.Close()
	player, err := load(ctx, unit.Players(), operationPlayer, subjectPlayer, playerID)
	if err != nil {
		return CashResult{}, err
	}
	if player.Cash < amount {
		return CashResult{Reason: ledger.DeclineInsufficientFunds, Player: *player}, nil
	}
	player.Cash -= amount
	unit.Players().MarkForUpdate(player)
	if err := commit(ctx, unit, operationPlayer, subjectPlayer); err != nil {
		return CashResult{}, err
	}
	return CashResult{Approved: true, Player: *player}, nil
}

// AddExperience grants experience points.
func (service *PlayerService) AddExperience(ctx context.Context, playerID uint, points int64) (entity.Player, error) {
	if points <= 0 {
		return entity.Player{}, invalid(operationPlayer, subjectAmount, "experience must be positive")
	}
	return service.update(ctx, playerID, func(player *entity.Player) error {
		if !ledger.CanCredit(player.Experience, points) {
			return ledger.WrapError(operationPlayer, subjectAmount, codeBalanceLimit, ledger.ErrInvalidBalance)
		}
		player.Experience += points
		return nil
	})
}

// SetJob assigns an active job by name and resets the job level.
func (service *PlayerService) SetJob(ctx context.Context, playerID uint, jobName string) (entity.Player, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	player, err := load(ctx, unit.Players(), operationPlayer, subjectPlayer, playerID)
	if err != nil {
		return entity.Player{}, err
	}
	job, err := unit.Jobs().FirstMatching(ctx, store.Eq(entity.ColumnName, strings.TrimSpace(jobName)))
	if err != nil {
		return entity.Player{}, ledger.NormalizeStoreError(operationPlayer, subjectJob, err)
	}
	if !job.IsActive {
		return entity.Player{}, ledger.WrapError(operationPlayer, subjectJob, codeForbidden, ErrInactiveJob)
	}
	player.Job = job.Name
	player.JobLevel = 1
	unit.Players().MarkForUpdate(player)
	if err := commit(ctx, unit, operationPlayer, subjectPlayer); err != nil {
		return entity.Player{}, err
	}
	return *player, nil
}

// Ban blocks logins. A zero duration bans permanently.
func (service *PlayerService) Ban(ctx context.Context, playerID uint, reason string, duration time.Duration) (entity.Player, error) {
	if duration < 0 {
		return entity.Player{}, invalid(operationPlayer, subjectPlayer, "ban duration must not be negative")
	}
	return service.update(ctx, playerID, func(player *entity.Player) error {
		player.IsBanned = true
		player.BanReason = strings.TrimSpace(reason)
		player.BanExpires = nil
		if duration > 0 {
			expires := service.now().Add(duration).UTC()
			player.BanExpires = &expires
		}
		return nil
	})
}

func (service *PlayerService) Unban(ctx context.Context, playerID uint) (entity.Player, error) {
	return service.update(ctx, playerID, func(player *entity.Player) error {
		clearBan(player)
		return nil
	})
}

// SetAdminLevel grants or revokes admin rights; zero revokes.
func (service *PlayerService) SetAdminLevel(ctx context.Context, playerID uint, level int) (entity.Player, error) {
	if level < 0 {
		return entity.Player{}, invalid(operationPlayer, subjectPlayer, "admin level must not be negative")
	}
	return service.update(ctx, playerID, func(player *entity.Player) error {
		player.AdminLevel = level
		return nil
	})
}

// PlayerByUsername returns the player registered under username.
func (service *PlayerService) PlayerByUsername(ctx context.Context, username string) (entity.Player, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	player, err := unit.Players().FirstMatching(ctx, store.Eq(entity.ColumnUsername, strings.TrimSpace(username)))
	if err != nil {
		return entity.Player{}, ledger.NormalizeStoreError(operationPlayer, subjectPlayer, err)
	}
	return *player, nil
}

func (service *PlayerService) update(ctx context.Context, playerID uint, mutate func(player *entity.Player) error) (entity.Player, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	player, err := load(ctx, unit.Players(), operationPlayer, subjectPlayer, playerID)
	if err != nil {
		return entity.Player{}, err
	}
	if err := mutate(player); err != nil {
		return entity.Player{}, err
	}
	unit.Players().MarkForUpdate(player)
	if err := commit(ctx, unit, operationPlayer, subjectPlayer); err != nil {
		return entity.Player{}, err
	}
	return *player, nil
}

func clearBan(player *entity.Player) {
	player.IsBanned = false
	player.BanReason = ""
	player.BanExpires = nil
}
