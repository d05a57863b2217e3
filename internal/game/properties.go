package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/entity"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"go.uber.org/zap"
)

const maxAddressLength = 128

// PropertySpec describes a property to create.
type PropertySpec struct {
	Address      string
	PropertyType string
	Price        int64
	RentCost     int64
	Entrance     Position
	Interior     Position
}

// PropertyService handles property listings, purchases and safes.
type PropertyService struct {
	units  store.Factory
	now    func() time.Time
	logger *zap.Logger
}

func NewPropertyService(units store.Factory, now func() time.Time, logger *zap.Logger) (*PropertyService, error) {
	if units == nil {
		return nil, fmt.Errorf("%w: unit of work factory is nil", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyService{units: units, now: now, logger: logger}, nil
}

// CreateProperty lists an unowned property for sale.
func (service *PropertyService) CreateProperty(ctx context.Context, spec PropertySpec) (entity.Property, error) {
	address := strings.TrimSpace(spec.Address)
	if address == "" || len(address) > maxAddressLength {
		return entity.Property{}, invalid(operationProperty, subjectProperty, fmt.Sprintf("address must have 1 to %d bytes", maxAddressLength))
	}
	if spec.Price < 0 || spec.RentCost < 0 {
		return entity.Property{}, invalid(operationProperty, subjectProperty, "price and rent must not be negative")
	}
	property := &entity.Property{
		Address:      address,
		PropertyType: strings.TrimSpace(spec.PropertyType),
		Price:        spec.Price,
		RentCost:     spec.RentCost,
		EntranceX:    spec.Entrance.X,
		EntranceY:    spec.Entrance.Y,
		EntranceZ:    spec.Entrance.Z,
		InteriorX:    spec.Interior.X,
		InteriorY:    spec.Interior.Y,
		InteriorZ:    spec.Interior.Z,
		ForSale:      true,
	}
	stamp(&property.Base, service.now())
	unit := service.units.Begin(ctx)
	defer unit.Close()
	unit.Properties().Add(property)
	if err := commit(ctx, unit, operationProperty, subjectProperty); err != nil {
		return entity.Property{}, err
	}
	return *property, nil
}

func (service *PropertyService) GetProperty(ctx context.Context, propertyID uint) (entity.Property, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	property, err := load(ctx, unit.Properties(), operationProperty, subjectProperty, propertyID)
	if err != nil {
		return entity.Property{}, err
	}
	return *property, nil
}

// AvailableProperties lists properties for sale, cheapest first.
func (service *PropertyService) AvailableProperties(ctx context.Context) ([]entity.Property, error) {
	return service.find(ctx, store.Eq(entity.ColumnForSale, true), store.OrderBy(entity.ColumnPrice, false), store.OrderBy(entity.ColumnID, false))
}

func (service *PropertyService) PropertiesOwnedBy(ctx context.Context, playerID uint) ([]entity.Property, error) {
	return service.find(ctx, store.Eq(entity.ColumnOwnerID, playerID), store.OrderBy(entity.ColumnID, false))
}

// Buy transfers a property to a player, paying its price from the player's
// cash. The cash debit and the ownership change commit together.
func (service *PropertyService) Buy(ctx context.Context, propertyID uint, playerID uint) (PropertyResult, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	property, player, err := service.loadPair(ctx, unit, operationBuyProperty, propertyID, playerID)
	if err != nil {
		return PropertyResult{}, err
	}
	if !property.ForSale || property.OwnerID != nil {
		return PropertyResult{}, ledger.WrapError(operationBuyProperty, subjectProperty, codeForbidden, ErrNotForSale)
	}
	if player.Cash < property.Price {
		return PropertyResult{Reason: ledger.DeclineInsufficientFunds, Player: *player, Property: *property}, nil
	}
	player.Cash -= property.Price
	owner := player.ID
	property.OwnerID = &owner
	property.ForSale = false
	unit.Players().MarkForUpdate(player)
	unit.Properties().MarkForUpdate(property)
	if err := commit(ctx, unit, operationBuyProperty, subjectProperty); err != nil {
		return PropertyResult{}, err
	}
	service.logger.Info("property bought",
		zap.Uint("property_id", property.ID),
		zap.Uint("player_id", player.ID),
		zap.Int64("price", property.Price),
	)
	return PropertyResult{Approved: true, Player: *player, Property: *property}, nil
}

// Sell returns an owned property to the market and pays out half its price
// plus the safe contents. A payout that would overflow cash is declined.
func (service *PropertyService) Sell(ctx context.Context, propertyID uint, playerID uint) (PropertyResult, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	property, player, err := service.loadOwned(ctx, unit, operationSellProperty, propertyID, playerID)
	if err != nil {
		return PropertyResult{}, err
	}
	refund := property.Price / 2
	if !ledger.CanCredit(refund, property.SafeMoney) || !ledger.CanCredit(player.Cash, refund+property.SafeMoney) {
		return PropertyResult{Reason: ledger.DeclineBalanceLimit, Player: *player, Property: *property}, nil
	}
	player.Cash += refund + property.SafeMoney
	property.SafeMoney = 0
	property.OwnerID = nil
	property.ForSale = true
	unit.Players().MarkForUpdate(player)
	unit.Properties().MarkForUpdate(property)
	if err := commit(ctx, unit, operationSellProperty, subjectProperty); err != nil {
		return PropertyResult{}, err
	}
	return PropertyResult{Approved: true, Player: *player, Property: *property}, nil
}

// DepositSafe moves the owner's cash into the property safe.
func (service *PropertyService) DepositSafe(ctx context.Context, propertyID uint, playerID uint, amount int64) (PropertyResult, error) {
	if amount <= 0 {
		return PropertyResult{Reason: ledger.DeclineNonPositiveAmount}, nil
	}
	return service.moveSafe(ctx, propertyID, playerID, amount, true)
}

// WithdrawSafe moves money from the property safe into the owner's cash.
func (service *PropertyService) WithdrawSafe(ctx context.Context, propertyID uint, playerID uint, amount int64) (PropertyResult, error) {
	if amount <= 0 {
		return PropertyResult{Reason: ledger.DeclineNonPositiveAmount}, nil
	}
	return service.moveSafe(ctx, propertyID, playerID, amount, false)
}

// moveSafe shifts a positive amount from cash into the safe, or back out of
// it when intoSafe is false.
func (service *PropertyService) moveSafe(ctx context.Context, propertyID uint, playerID uint, amount int64, intoSafe bool) (PropertyResult, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	property, player, err := service.loadOwned(ctx, unit, operationPropertySafe, propertyID, playerID)
	if err != nil {
		return PropertyResult{}, err
	}
	from, to := &player.Cash, &property.SafeMoney
	if !intoSafe {
		from, to = &property.SafeMoney, &player.Cash
	}
	if *from < amount {
		return PropertyResult{Reason: ledger.DeclineInsufficientFunds, Player: *player, Property: *property}, nil
	}
	if !ledger.CanCredit(*to, amount) {
		return PropertyResult{Reason: ledger.DeclineBalanceLimit, Player: *player, Property: *property}, nil
	}
	*from -= amount
	*to += amount
	unit.Players().MarkForUpdate(player)
	unit.Properties().MarkForUpdate(property)
	if err := commit(ctx, unit, operationPropertySafe, subjectProperty); err != nil {
		return PropertyResult{}, err
	}
	return PropertyResult{Approved: true, Player: *player, Property: *property}, nil
}

func (service *PropertyService) loadPair(ctx context.Context, unit store.UnitOfWork, operation string, propertyID uint, playerID uint) (*entity.Property, *entity.Player, error) {
	property, err := load(ctx, unit.Properties(), operation, subjectProperty, propertyID)
	if err != nil {
		return nil, nil, err
	}
	player, err := load(ctx, unit.Players(), operation, subjectPlayer, playerID)
	if err != nil {
		return nil, nil, err
	}
	return property, player, nil
}

func (service *PropertyService) loadOwned(ctx context.Context, unit store.UnitOfWork, operation string, propertyID uint, playerID uint) (*entity.Property, *entity.Player, error) {
	property, player, err := service.loadPair(ctx, unit, operation, propertyID, playerID)
	if err != nil {
		return nil, nil, err
	}
	if property.OwnerID == nil || *property.OwnerID != player.ID {
		return nil, nil, ledger.WrapError(operation, subjectProperty, codeForbidden, ErrNotOwner)
	}
	return property, player, nil
}

func (service *PropertyService) find(ctx context.Context, predicate store.Predicate, options ...store.QueryOption) ([]entity.Property, error) {
	unit := service.units.Begin(ctx)
	defer unit.Close()
	properties, err := unit.Properties().FindMatching(ctx, predicate, options...)
	if err != nil {
		return nil, ledger.NormalizeStoreError(operationProperty, subjectProperty, err)
	}
	return derefAll(properties), nil
}
