package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campus-wallet-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// transactionParams contains the parameters for one audit row
type transactionParams struct {
	UserId        int64
	Kind          string
	Amount        int64 // signed minor units
	OrderId       *int64
	RelatedUserId *int64
	OperationId   *int64
	Reference     string
}

// recordTransaction appends an audit row inside the caller's transaction
func recordTransaction(ctx context.Context, q querier, params transactionParams, now time.Time) (string, error) {
	transactionId := uuid.New().String()

	_, err := q.ExecContext(ctx, queryInsertTransaction,
		transactionId, params.UserId, params.Kind, params.Amount,
		nullableId(params.OrderId), nullableId(params.RelatedUserId), nullableId(params.OperationId),
		params.Reference, now)
	if err != nil {
		return "", storeFailure("insert "+params.Kind+" transaction", err)
	}

	zap.L().Debug("Transaction recorded",
		zap.String("transaction_id", transactionId),
		zap.Int64("user_id", params.UserId),
		zap.String("kind", params.Kind),
		zap.String("amount", fromMinor(params.Amount).String()))

	return transactionId, nil
}

// GetTransactionHistory returns a user's audit rows, newest first
func (s *Service) GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.Int64("user_id", userId), zap.Error(err))
		return nil, storeFailure("get transaction history", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var amount int64
		var orderId, relatedUserId, operationId sql.NullInt64

		err := rows.Scan(&tx.Id, &tx.UserId, &tx.Kind, &amount, &orderId, &relatedUserId, &operationId, &tx.Reference, &tx.CreatedAt)
		if err != nil {
			return nil, storeFailure("scan transaction", err)
		}

		tx.Amount = fromMinor(amount)
		tx.OrderId = idPtr(orderId)
		tx.RelatedUserId = idPtr(relatedUserId)
		tx.OperationId = idPtr(operationId)
		transactions = append(transactions, tx)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, storeFailure("iterate transaction rows", err)
	}

	zap.L().Debug("Retrieved transaction history", zap.Int64("user_id", userId), zap.Int("count", len(transactions)))
	return transactions, nil
}

// ReconcileUser compares the stored balances of a user with the sums of their audit trail.
// Both are read in one transaction so concurrent writers cannot skew the comparison.
func (s *Service) ReconcileUser(ctx context.Context, userId int64) (*models.UserReconciliation, error) {
	var report *models.UserReconciliation

	err := s.withTx(ctx, "reconcile user", func(tx *sql.Tx) error {
		balance, reserved, err := readBalance(ctx, tx, userId)
		if err != nil {
			return err
		}

		var count int
		var trailBalance, trailReserved int64
		err = tx.QueryRowContext(ctx, queryTrailTotals, userId).Scan(&count, &trailBalance, &trailReserved)
		if err != nil {
			return storeFailure("sum transaction trail", err)
		}

		report = &models.UserReconciliation{
			UserId:           userId,
			Balance:          balance,
			Reserved:         reserved,
			TrailBalance:     fromMinor(trailBalance),
			TrailReserved:    fromMinor(trailReserved),
			TransactionCount: count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Consistent() {
		zap.L().Debug("Balance reconciliation successful",
			zap.Int64("user_id", userId),
			zap.String("balance", report.Balance.String()),
			zap.Int("transactions", report.TransactionCount))
	} else {
		zap.L().Warn("Balance reconciliation mismatch",
			zap.Int64("user_id", userId),
			zap.String("balance", report.Balance.String()),
			zap.String("trail_balance", report.TrailBalance.String()),
			zap.String("reserved", report.Reserved.String()),
			zap.String("trail_reserved", report.TrailReserved.String()))
	}

	return report, nil
}

// CheckEscrowInvariant compares the sum of reserved balances with the prices of reserved orders
func (s *Service) CheckEscrowInvariant(ctx context.Context) (*models.EscrowReport, error) {
	var totalReserved, reservedOrders int64
	var count int

	err := s.db.QueryRowContext(ctx, queryEscrowTotals).Scan(&totalReserved, &reservedOrders, &count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeFailure("sum escrow totals", err)
	}

	report := &models.EscrowReport{
		TotalReserved:  fromMinor(totalReserved),
		ReservedOrders: fromMinor(reservedOrders),
		ReservedCount:  count,
	}

	if !report.Consistent() {
		zap.L().Warn("Escrow invariant violated",
			zap.String("total_reserved", report.TotalReserved.String()),
			zap.String("reserved_orders", report.ReservedOrders.String()),
			zap.Int("reserved_count", count))
	}

	return report, nil
}

func orderRef(orderId int64) string {
	return fmt.Sprintf("order:%d", orderId)
}

func operationRef(operationId int64) string {
	return fmt.Sprintf("replenishment:%d", operationId)
}

// wrapNotFound is used after QueryRow on an entity lookup
func wrapNotFound(err error, notFound error, id int64, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", notFound, id)
	}
	return storeFailure(op, err)
}
