package database

import (
	"context"
	"testing"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeAwaiting inserts an order that is not funded yet
func placeAwaiting(t *testing.T, s *Service, customerId, price int64) int64 {
	t.Helper()

	balance, err := s.GetUserBalance(context.Background(), customerId)
	require.NoError(t, err)
	require.True(t, balance.Balance.LessThan(decimal.NewFromInt(price)), "customer must not cover the price")

	placement, err := s.PlaceOrder(context.Background(), draft(customerId, price), models.FundingModeEscrow)
	require.NoError(t, err)
	require.False(t, placement.Funded)
	return placement.Order.Id
}

func requireEscrowConsistent(t *testing.T, s *Service) {
	t.Helper()

	report, err := s.CheckEscrowInvariant(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "reserved %s != reserved orders %s", report.TotalReserved, report.ReservedOrders)
}

func TestEscrow_FullCycle(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "1000")
	seedUser(t, s, 2, "0")

	placement, err := s.PlaceOrder(ctx, draft(1, 400), models.FundingModeEscrow)
	require.NoError(t, err)
	require.True(t, placement.Funded)
	orderId := placement.Order.Id
	requireBalance(t, s, 1, "600", "400")
	requireEscrowConsistent(t, s)

	before, err := s.GetTransactionHistory(ctx, 1, 100, 0)
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, 1, 2, orderId, decimal.NewFromInt(400)))

	requireBalance(t, s, 1, "600", "0")
	requireBalance(t, s, 2, "400", "0")
	requireEscrowConsistent(t, s)

	order, err := s.GetOrder(ctx, orderId)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.False(t, order.Reserved)
	require.NotNil(t, order.ExecutorId)
	assert.Equal(t, int64(2), *order.ExecutorId)

	after, err := s.GetTransactionHistory(ctx, 1, 100, 0)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, models.TransactionKindPayment, after[0].Kind)
	assert.Equal(t, "-400", after[0].Amount.String())
	require.NotNil(t, after[0].RelatedUserId)
	assert.Equal(t, int64(2), *after[0].RelatedUserId)

	income, err := s.GetTransactionHistory(ctx, 2, 100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, income)
	assert.Equal(t, models.TransactionKindIncome, income[0].Kind)
	assert.Equal(t, "400", income[0].Amount.String())

	// Completing twice is rejected and changes nothing.
	err = s.Complete(ctx, 1, 2, orderId, decimal.NewFromInt(400))
	assert.ErrorIs(t, err, store.ErrOrderNotReserved)
	requireBalance(t, s, 2, "400", "0")

	for _, userId := range []int64{1, 2} {
		report, err := s.ReconcileUser(ctx, userId)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "user %d trail %+v", userId, report)
	}
}

func TestEscrow_CancelRestoresBalance(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "500")

	placement, err := s.PlaceOrder(ctx, draft(1, 500), models.FundingModeEscrow)
	require.NoError(t, err)
	require.True(t, placement.Funded)
	requireBalance(t, s, 1, "0", "500")

	order, err := s.CancelOrder(ctx, placement.Order.Id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.False(t, order.Reserved)

	requireBalance(t, s, 1, "500", "0")
	requireEscrowConsistent(t, s)

	report, err := s.ReconcileUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestReserve(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "100")

	orderId := placeAwaiting(t, s, 1, 250)

	ok, err := s.Reserve(ctx, 1, orderId, decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.False(t, ok)
	requireBalance(t, s, 1, "100", "0")

	require.NoError(t, s.Credit(ctx, 1, decimal.NewFromInt(150)))

	_, err = s.Reserve(ctx, 1, orderId, decimal.NewFromInt(200))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	requireBalance(t, s, 1, "250", "0")

	ok, err = s.Reserve(ctx, 1, orderId, decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, ok)
	requireBalance(t, s, 1, "0", "250")

	require.NoError(t, s.Credit(ctx, 1, decimal.NewFromInt(250)))
	_, err = s.Reserve(ctx, 1, orderId, decimal.NewFromInt(250))
	assert.ErrorIs(t, err, store.ErrAlreadyReserved)
	requireBalance(t, s, 1, "250", "250")
	requireEscrowConsistent(t, s)

	// The order still awaits payment; funding it only moves the status.
	placement, err := s.FundOrder(ctx, orderId, models.FundingModeEscrow)
	require.NoError(t, err)
	assert.True(t, placement.Funded)
	assert.Equal(t, models.OrderStatusPendingModeration, placement.Order.Status)
	requireBalance(t, s, 1, "250", "250")
}

func TestRelease(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "300")
	seedUser(t, s, 2, "0")

	placement, err := s.PlaceOrder(ctx, draft(1, 300), models.FundingModeEscrow)
	require.NoError(t, err)
	orderId := placement.Order.Id

	assert.ErrorIs(t, s.Release(ctx, 2, orderId, decimal.NewFromInt(300)), store.ErrInvalidOrderState)
	assert.ErrorIs(t, s.Release(ctx, 1, orderId, decimal.NewFromInt(100)), store.ErrInvalidAmount)
	assert.ErrorIs(t, s.Release(ctx, 1, 404, decimal.NewFromInt(300)), store.ErrOrderNotFound)

	require.NoError(t, s.Release(ctx, 1, orderId, decimal.NewFromInt(300)))
	requireBalance(t, s, 1, "300", "0")

	assert.ErrorIs(t, s.Release(ctx, 1, orderId, decimal.NewFromInt(300)), store.ErrOrderNotReserved)
	requireBalance(t, s, 1, "300", "0")
	requireEscrowConsistent(t, s)
}

func TestComplete_Rejected(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "300")
	seedUser(t, s, 2, "0")

	placement, err := s.PlaceOrder(ctx, draft(1, 300), models.FundingModeEscrow)
	require.NoError(t, err)
	orderId := placement.Order.Id

	assert.ErrorIs(t, s.Complete(ctx, 1, 1, orderId, decimal.NewFromInt(300)), store.ErrInvalidOrderState)
	assert.ErrorIs(t, s.Complete(ctx, 1, 3, orderId, decimal.NewFromInt(300)), store.ErrUserNotFound)
	assert.ErrorIs(t, s.Complete(ctx, 1, 2, orderId, decimal.NewFromInt(299)), store.ErrInvalidAmount)

	requireBalance(t, s, 1, "0", "300")
	requireBalance(t, s, 2, "0", "0")

	order, err := s.GetOrder(ctx, orderId)
	require.NoError(t, err)
	assert.True(t, order.Reserved)
	assert.Nil(t, order.ExecutorId)
}
