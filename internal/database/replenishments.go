package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanOperation(row rowScanner) (*models.ReplenishmentOperation, error) {
	var op models.ReplenishmentOperation
	var amount, tips int64
	var orderId, settled sql.NullInt64
	var paidAt sql.NullTime

	err := row.Scan(&op.Id, &op.UserId, &orderId, &amount, &tips, &op.Status, &settled,
		&op.ProviderChargeId, &op.ReviewReason, &op.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}

	op.OrderId = idPtr(orderId)
	op.Amount = fromMinor(amount)
	op.Tips = fromMinor(tips)
	if settled.Valid {
		op.SettledAmount = decimal.NewNullDecimal(fromMinor(settled.Int64))
	}
	if paidAt.Valid {
		t := paidAt.Time
		op.PaidAt = &t
	}
	return &op, nil
}

// CreateReplenishment records a top-up request. The returned id is the invoice payload.
func (s *Service) CreateReplenishment(ctx context.Context, userId int64, amount decimal.Decimal) (int64, error) {
	return s.createReplenishment(ctx, userId, nil, amount)
}

// CreateOrderReplenishment records a top-up request that covers an order's shortfall.
func (s *Service) CreateOrderReplenishment(ctx context.Context, userId, orderId int64, amount decimal.Decimal) (int64, error) {
	return s.createReplenishment(ctx, userId, &orderId, amount)
}

func (s *Service) createReplenishment(ctx context.Context, userId int64, orderId *int64, amount decimal.Decimal) (int64, error) {
	minor, err := positiveMinor(amount)
	if err != nil {
		return 0, err
	}

	var operationId int64
	err = s.withTx(ctx, "create replenishment", func(tx *sql.Tx) error {
		operationId, err = s.insertReplenishment(ctx, tx, userId, orderId, minor)
		return err
	})
	if err != nil {
		return 0, err
	}

	logReplenishmentCreated(operationId, userId, orderId, amount)
	return operationId, nil
}

// EnsureOrderReplenishment returns the order's newest awaiting operation when it
// still covers shortfall, otherwise it records a new one for exactly shortfall.
// Lookup and insert run in a single transaction so concurrent callers share one
// operation.
func (s *Service) EnsureOrderReplenishment(ctx context.Context, userId, orderId int64, shortfall decimal.Decimal) (*models.ReplenishmentOperation, bool, error) {
	minor, err := positiveMinor(shortfall)
	if err != nil {
		return nil, false, err
	}

	var op *models.ReplenishmentOperation
	var created bool
	err = s.withTx(ctx, "ensure order replenishment", func(tx *sql.Tx) error {
		existing, err := findAwaitingOperation(ctx, tx, orderId)
		switch {
		case err == nil:
			if existing.UserId == userId && existing.Amount.GreaterThanOrEqual(shortfall) {
				op = existing
				return nil
			}
		case !store.IsNotFound(err):
			return err
		}

		operationId, err := s.insertReplenishment(ctx, tx, userId, &orderId, minor)
		if err != nil {
			return err
		}
		op, err = getOperation(ctx, tx, operationId)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		logReplenishmentCreated(op.Id, userId, &orderId, shortfall)
	}
	return op, created, nil
}

func (s *Service) insertReplenishment(ctx context.Context, tx *sql.Tx, userId int64, orderId *int64, minor int64) (int64, error) {
	exists, err := userExists(ctx, tx, userId)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %d", store.ErrUserNotFound, userId)
	}

	if orderId != nil {
		order, err := getOrder(ctx, tx, *orderId)
		if err != nil {
			return 0, err
		}
		if order.CustomerId != userId {
			return 0, fmt.Errorf("%w: order %d belongs to another customer", store.ErrInvalidOrderState, *orderId)
		}
	}

	result, err := tx.ExecContext(ctx, queryInsertOperation, userId, nullableId(orderId), minor, s.now())
	if err != nil {
		return 0, storeFailure("insert replenishment", err)
	}
	operationId, err := result.LastInsertId()
	if err != nil {
		return 0, storeFailure("replenishment id", err)
	}
	return operationId, nil
}

func logReplenishmentCreated(operationId, userId int64, orderId *int64, amount decimal.Decimal) {
	fields := []zap.Field{
		zap.Int64("operation_id", operationId),
		zap.Int64("user_id", userId),
		zap.String("amount", amount.String()),
	}
	if orderId != nil {
		fields = append(fields, zap.Int64("order_id", *orderId))
	}
	zap.L().Info("Replenishment operation created", fields...)
}

// LookupAmount returns the requested amount of an operation
func (s *Service) LookupAmount(ctx context.Context, operationId int64) (decimal.Decimal, error) {
	op, err := s.GetOperation(ctx, operationId)
	if err != nil {
		return decimal.Zero, err
	}
	return op.Amount, nil
}

func (s *Service) GetOperation(ctx context.Context, operationId int64) (*models.ReplenishmentOperation, error) {
	return getOperation(ctx, s.db, operationId)
}

func getOperation(ctx context.Context, q querier, operationId int64) (*models.ReplenishmentOperation, error) {
	op, err := scanOperation(q.QueryRowContext(ctx, queryGetOperation, operationId))
	if err != nil {
		return nil, wrapNotFound(err, store.ErrOperationNotFound, operationId, "get replenishment")
	}
	return op, nil
}

// FindAwaitingOperation returns the newest unpaid operation created for an order
func (s *Service) FindAwaitingOperation(ctx context.Context, orderId int64) (*models.ReplenishmentOperation, error) {
	return findAwaitingOperation(ctx, s.db, orderId)
}

func findAwaitingOperation(ctx context.Context, q querier, orderId int64) (*models.ReplenishmentOperation, error) {
	op, err := scanOperation(q.QueryRowContext(ctx, queryFindAwaitingOperation, orderId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no awaiting operation for order %d", store.ErrOperationNotFound, orderId)
		}
		return nil, storeFailure("find awaiting replenishment", err)
	}
	return op, nil
}

// ListFlaggedOperations returns unpaid operations held for manual review
func (s *Service) ListFlaggedOperations(ctx context.Context, limit int) ([]models.ReplenishmentOperation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, queryListFlaggedOperations, limit)
	if err != nil {
		return nil, storeFailure("list flagged replenishments", err)
	}
	defer closeRows(rows)

	var ops []models.ReplenishmentOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, storeFailure("scan replenishment", err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("iterate replenishment rows", err)
	}

	return ops, nil
}
