package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reserve moves amount from the customer's balance to their reserved balance and
// marks the order reserved. It returns false, with nothing written, when the
// balance does not cover the amount.
func (s *Service) Reserve(ctx context.Context, customerId, orderId int64, amount decimal.Decimal) (bool, error) {
	minor, err := positiveMinor(amount)
	if err != nil {
		return false, err
	}

	var reserved bool
	err = s.withTx(ctx, "reserve funds", func(tx *sql.Tx) error {
		reserved, err = reserveInTx(ctx, tx, customerId, orderId, minor, s.now())
		return err
	})
	if err != nil {
		return false, err
	}

	zap.L().Info("Escrow reserve",
		zap.Int64("customer_id", customerId),
		zap.Int64("order_id", orderId),
		zap.String("amount", amount.String()),
		zap.Bool("reserved", reserved))
	return reserved, nil
}

// Release returns reserved funds for an order to the customer's balance
func (s *Service) Release(ctx context.Context, customerId, orderId int64, amount decimal.Decimal) error {
	minor, err := positiveMinor(amount)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, "release funds", func(tx *sql.Tx) error {
		return releaseInTx(ctx, tx, customerId, orderId, minor, s.now())
	})
	if err != nil {
		return err
	}

	zap.L().Info("Escrow release",
		zap.Int64("customer_id", customerId),
		zap.Int64("order_id", orderId),
		zap.String("amount", amount.String()))
	return nil
}

// Complete settles a reserved order: the customer's reserved balance pays the
// executor, the order is completed and one row is written for each side.
func (s *Service) Complete(ctx context.Context, customerId, executorId, orderId int64, amount decimal.Decimal) error {
	minor, err := positiveMinor(amount)
	if err != nil {
		return err
	}
	if executorId == customerId {
		return fmt.Errorf("%w: customer %d cannot execute their own order", store.ErrInvalidOrderState, customerId)
	}

	now := s.now()
	err = s.withTx(ctx, "complete order", func(tx *sql.Tx) error {
		exists, err := userExists(ctx, tx, executorId)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: executor %d", store.ErrUserNotFound, executorId)
		}

		result, err := tx.ExecContext(ctx, queryMarkOrderCompleted, executorId, now, orderId, customerId, minor)
		if err != nil {
			return storeFailure("complete order", err)
		}
		if err := requireGuard(ctx, tx, result, orderId, customerId, minor, true); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, querySettleReserved, minor, now, customerId, minor)
		if err != nil {
			return storeFailure("settle reserved balance", err)
		}
		settled, err := conditionalOutcome(ctx, tx, result, customerId)
		if err != nil {
			return err
		}
		if !settled {
			return fmt.Errorf("%w: reserved balance of %d is below %s", store.ErrInsufficientFunds, customerId, fromMinor(minor))
		}

		if err := credit(ctx, tx, executorId, minor, now); err != nil {
			return err
		}

		if _, err := recordTransaction(ctx, tx, transactionParams{
			UserId:        customerId,
			Kind:          models.TransactionKindPayment,
			Amount:        -minor,
			OrderId:       &orderId,
			RelatedUserId: &executorId,
			Reference:     orderRef(orderId),
		}, now); err != nil {
			return err
		}

		_, err = recordTransaction(ctx, tx, transactionParams{
			UserId:        executorId,
			Kind:          models.TransactionKindIncome,
			Amount:        minor,
			OrderId:       &orderId,
			RelatedUserId: &customerId,
			Reference:     orderRef(orderId),
		}, now)
		return err
	})
	if err != nil {
		zap.L().Error("Failed to complete order",
			zap.Int64("order_id", orderId),
			zap.Int64("customer_id", customerId),
			zap.Int64("executor_id", executorId),
			zap.Error(err))
		return err
	}

	zap.L().Info("Escrow payment completed",
		zap.Int64("order_id", orderId),
		zap.Int64("customer_id", customerId),
		zap.Int64("executor_id", executorId),
		zap.String("amount", amount.String()))
	return nil
}

func reserveInTx(ctx context.Context, tx *sql.Tx, customerId, orderId, minor int64, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, queryReserveFunds, minor, minor, now, customerId, minor)
	if err != nil {
		return false, storeFailure("reserve funds", err)
	}
	ok, err := conditionalOutcome(ctx, tx, result, customerId)
	if err != nil || !ok {
		return false, err
	}

	result, err = tx.ExecContext(ctx, queryMarkOrderReserved, now, orderId, customerId, minor)
	if err != nil {
		return false, storeFailure("mark order reserved", err)
	}
	if err := requireGuard(ctx, tx, result, orderId, customerId, minor, false); err != nil {
		return false, err
	}

	_, err = recordTransaction(ctx, tx, transactionParams{
		UserId:    customerId,
		Kind:      models.TransactionKindReserve,
		Amount:    -minor,
		OrderId:   &orderId,
		Reference: orderRef(orderId),
	}, now)
	if err != nil {
		return false, err
	}
	return true, nil
}

func releaseInTx(ctx context.Context, tx *sql.Tx, customerId, orderId, minor int64, now time.Time) error {
	result, err := tx.ExecContext(ctx, queryMarkOrderReleased, now, orderId, customerId, minor)
	if err != nil {
		return storeFailure("mark order released", err)
	}
	if err := requireGuard(ctx, tx, result, orderId, customerId, minor, true); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx, queryReleaseFunds, minor, minor, now, customerId, minor)
	if err != nil {
		return storeFailure("release funds", err)
	}
	ok, err := conditionalOutcome(ctx, tx, result, customerId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: reserved balance of %d is below %s", store.ErrInsufficientFunds, customerId, fromMinor(minor))
	}

	_, err = recordTransaction(ctx, tx, transactionParams{
		UserId:    customerId,
		Kind:      models.TransactionKindRelease,
		Amount:    minor,
		OrderId:   &orderId,
		Reference: orderRef(orderId),
	}, now)
	return err
}

// requireGuard turns a conditional order update that matched nothing into the reason it failed
func requireGuard(ctx context.Context, q querier, result sql.Result, orderId, customerId, minor int64, wantReserved bool) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("order guard rows affected", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	order, err := getOrder(ctx, q, orderId)
	if err != nil {
		return err
	}

	switch {
	case order.CustomerId != customerId:
		return fmt.Errorf("%w: order %d does not belong to customer %d", store.ErrInvalidOrderState, orderId, customerId)
	case !order.Price.Equal(fromMinor(minor)):
		return fmt.Errorf("%w: %s does not match order %d price %s", store.ErrInvalidAmount, fromMinor(minor), orderId, order.Price)
	case wantReserved && !order.Reserved:
		return fmt.Errorf("%w: order %d", store.ErrOrderNotReserved, orderId)
	case !wantReserved && order.Reserved:
		return fmt.Errorf("%w: order %d", store.ErrAlreadyReserved, orderId)
	default:
		return fmt.Errorf("%w: order %d is %s", store.ErrInvalidOrderState, orderId, order.Status)
	}
}
