package database

import (
	"context"
	"sync"
	"testing"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReplenishment(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "0")

	opId, err := s.CreateReplenishment(ctx, 1, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Positive(t, opId)

	amount, err := s.LookupAmount(ctx, opId)
	require.NoError(t, err)
	assert.Equal(t, "500", amount.String())

	op, err := s.GetOperation(ctx, opId)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusAwaitingPayment, op.Status)
	assert.Equal(t, int64(1), op.UserId)
	assert.Nil(t, op.OrderId)
	assert.Nil(t, op.PaidAt)
	assert.False(t, op.SettledAmount.Valid)
	assert.True(t, op.Tips.IsZero())
}

func TestCreateReplenishment_Rejected(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "0")

	_, err := s.CreateReplenishment(ctx, 1, decimal.Zero)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = s.CreateReplenishment(ctx, 1, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = s.CreateReplenishment(ctx, 2, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = s.CreateOrderReplenishment(ctx, 1, 77, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}

func TestLookupAmount_UnknownOperation(t *testing.T) {
	s := setupTestDb(t)

	_, err := s.LookupAmount(context.Background(), 12345)
	assert.ErrorIs(t, err, store.ErrOperationNotFound)
	assert.False(t, store.IsRetryable(err))
}

func TestFindAwaitingOperation(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "100")

	placement, err := s.PlaceOrder(ctx, models.OrderDraft{CustomerId: 1, Title: "essay", Price: decimal.NewFromInt(300)}, models.FundingModeDirect)
	require.NoError(t, err)
	orderId := placement.Order.Id

	_, err = s.FindAwaitingOperation(ctx, orderId)
	assert.ErrorIs(t, err, store.ErrOperationNotFound)

	opId, err := s.CreateOrderReplenishment(ctx, 1, orderId, decimal.NewFromInt(200))
	require.NoError(t, err)

	op, err := s.FindAwaitingOperation(ctx, orderId)
	require.NoError(t, err)
	assert.Equal(t, opId, op.Id)
	require.NotNil(t, op.OrderId)
	assert.Equal(t, orderId, *op.OrderId)

	_, err = s.ConfirmPayment(ctx, opId, decimal.NewFromInt(200))
	require.NoError(t, err)

	_, err = s.FindAwaitingOperation(ctx, orderId)
	assert.ErrorIs(t, err, store.ErrOperationNotFound)
}

func TestCreateOrderReplenishment_OtherCustomer(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "0")
	seedUser(t, s, 2, "0")

	placement, err := s.PlaceOrder(ctx, models.OrderDraft{CustomerId: 1, Price: decimal.NewFromInt(10)}, models.FundingModeDirect)
	require.NoError(t, err)

	_, err = s.CreateOrderReplenishment(ctx, 2, placement.Order.Id, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, store.ErrInvalidOrderState)
}

func TestEnsureOrderReplenishment(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "100")

	placement, err := s.PlaceOrder(ctx, draft(1, 400), models.FundingModeDirect)
	require.NoError(t, err)
	orderId := placement.Order.Id

	first, created, err := s.EnsureOrderReplenishment(ctx, 1, orderId, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "300", first.Amount.String())
	assert.Equal(t, models.OperationStatusAwaitingPayment, first.Status)

	reused, created, err := s.EnsureOrderReplenishment(ctx, 1, orderId, decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Id, reused.Id)
	assert.Equal(t, "300", reused.Amount.String())

	larger, created, err := s.EnsureOrderReplenishment(ctx, 1, orderId, decimal.NewFromInt(350))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.Id, larger.Id)
	assert.Equal(t, "350", larger.Amount.String())

	_, _, err = s.EnsureOrderReplenishment(ctx, 1, orderId, decimal.Zero)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestEnsureOrderReplenishment_OtherCustomer(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "0")
	seedUser(t, s, 2, "0")

	placement, err := s.PlaceOrder(ctx, draft(1, 10), models.FundingModeDirect)
	require.NoError(t, err)

	_, _, err = s.EnsureOrderReplenishment(ctx, 2, placement.Order.Id, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, store.ErrInvalidOrderState)
}

func TestEnsureOrderReplenishment_ConcurrentCallersShareOperation(t *testing.T) {
	s := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, s, 1, "0")

	placement, err := s.PlaceOrder(ctx, draft(1, 200), models.FundingModeDirect)
	require.NoError(t, err)
	orderId := placement.Order.Id

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op, _, err := s.EnsureOrderReplenishment(ctx, 1, orderId, decimal.NewFromInt(200))
			if err != nil {
				t.Errorf("ensure replenishment failed: %v", err)
				return
			}
			ids[i] = op.Id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM replenishment_operations WHERE order_id = ? AND status = 'awaiting_payment'`,
		orderId).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
