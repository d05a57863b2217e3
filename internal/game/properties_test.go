package game

import (
	"context"
	"math"
	"testing"

	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyAndSellProperty(test *testing.T) {
	test.Parallel()
	fixture := newServices(test)
	ctx := context.Background()
	buyer := mustRegister(test, fixture, "alice")
	rival := mustRegister(test, fixture, "bob")

	house, err := fixture.properties.CreateProperty(ctx, PropertySpec{Address: "1 Grove Street", PropertyType: "house", Price: 4000})
	require.NoError(test, err)
	mansion, err := fixture.properties.CreateProperty(ctx, PropertySpec{Address: "7 Vinewood Hills", PropertyType: "mansion", Price: 90000})
	require.NoError(test, err)
	_, err = fixture.properties.CreateProperty(ctx, PropertySpec{Address: "1 Grove Street"})
	require.ErrorIs(test, err, ledger.ErrConflict)

	available, err := fixture.properties.AvailableProperties(ctx)
	require.NoError(test, err)
	require.Len(test, available, 2)
	assert.Equal(test, house.ID, available[0].ID)

	result, err := fixture.properties.Buy(ctx, mansion.ID, buyer.ID)
	require.NoError(test, err)
	assert.False(test, result.Approved)
	assert.Equal(test, ledger.DeclineInsufficientFunds, result.Reason)

	result, err = fixture.properties.Buy(ctx, house.ID, buyer.ID)
	require.NoError(test, err)
	require.True(test, result.Approved)
	assert.Equal(test, int64(DefaultStartingCash-4000), result.Player.Cash)
	require.NotNil(test, result.Property.OwnerID)
	assert.Equal(test, buyer.ID, *result.Property.OwnerID)
	assert.False(test, result.Property.ForSale)

	_, err = fixture.properties.Buy(ctx, house.ID, rival.ID)
	require.ErrorIs(test, err, ErrNotForSale)
	_, err = fixture.properties.Sell(ctx, house.ID, rival.ID)
	require.ErrorIs(test, err, ErrNotOwner)

	owned, err := fixture.properties.PropertiesOwnedBy(ctx, buyer.ID)
	require.NoError(test, err)
	require.Len(test, owned, 1)

	sold, err := fixture.properties.Sell(ctx, house.ID, buyer.ID)
	require.NoError(test, err)
	assert.Equal(test, int64(DefaultStartingCash-2000), sold.Player.Cash)
	assert.Nil(test, sold.Property.OwnerID)
	assert.True(test, sold.Property.ForSale)
}

func TestPropertySafe(test *testing.T) {
	test.Parallel()
	fixture := newServices(test)
	ctx := context.Background()
	owner := mustRegister(test, fixture, "alice")
	house, err := fixture.properties.CreateProperty(ctx, PropertySpec{Address: "2 Grove Street", Price: 1000})
	require.NoError(test, err)
	_, err = fixture.properties.DepositSafe(ctx, house.ID, owner.ID, 100)
	require.ErrorIs(test, err, ErrNotOwner)
	_, err = fixture.properties.Buy(ctx, house.ID, owner.ID)
	require.NoError(test, err)

	result, err := fixture.properties.DepositSafe(ctx, house.ID, owner.ID, 1500)
	require.NoError(test, err)
	require.True(test, result.Approved)
	assert.Equal(test, int64(2500), result.Player.Cash)
	assert.Equal(test, int64(1500), result.Property.SafeMoney)

	result, err = fixture.properties.WithdrawSafe(ctx, house.ID, owner.ID, 2000)
	require.NoError(test, err)
	assert.Equal(test, ledger.DeclineInsufficientFunds, result.Reason)

	result, err = fixture.properties.WithdrawSafe(ctx, house.ID, owner.ID, 0)
	require.NoError(test, err)
	assert.Equal(test, ledger.DeclineNonPositiveAmount, result.Reason)

	result, err = fixture.properties.WithdrawSafe(ctx, house.ID, owner.ID, 500)
	require.NoError(test, err)
	require.True(test, result.Approved)
	assert.Equal(test, int64(3000), result.Player.Cash)
	assert.Equal(test, int64(1000), result.Property.SafeMoney)
}

func TestPropertyPayoutsRespectCashLimit(test *testing.T) {
	test.Parallel()
	fixture := newServices(test)
	ctx := context.Background()
	owner := mustRegister(test, fixture, "alice")
	house, err := fixture.properties.CreateProperty(ctx, PropertySpec{Address: "5 Grove Street", Price: 1000})
	require.NoError(test, err)
	_, err = fixture.properties.Buy(ctx, house.ID, owner.ID)
	require.NoError(test, err)
	_, err = fixture.properties.DepositSafe(ctx, house.ID, owner.ID, 1500)
	require.NoError(test, err)
	rich, err := fixture.players.AddCash(ctx, owner.ID, math.MaxInt64-2500-10)
	require.NoError(test, err)
	require.Equal(test, int64(math.MaxInt64-10), rich.Cash)

	result, err := fixture.properties.WithdrawSafe(ctx, house.ID, owner.ID, 500)
	require.NoError(test, err)
	assert.Equal(test, ledger.DeclineBalanceLimit, result.Reason)

	result, err = fixture.properties.Sell(ctx, house.ID, owner.ID)
	require.NoError(test, err)
	assert.False(test, result.Approved)
	assert.Equal(test, ledger.DeclineBalanceLimit, result.Reason)

	stored, err := fixture.properties.GetProperty(ctx, house.ID)
	require.NoError(test, err)
	require.NotNil(test, stored.OwnerID)
	assert.Equal(test, int64(1500), stored.SafeMoney)
	player, err := fixture.players.GetPlayer(ctx, owner.ID)
	require.NoError(test, err)
	assert.Equal(test, int64(math.MaxInt64-10), player.Cash)
}
