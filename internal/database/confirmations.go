package database

import (
	"context"
	"database/sql"
	"fmt"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConfirmPayment applies a provider confirmation for a replenishment operation
// exactly once. The lookup, status change, credit and audit row share one
// transaction; a repeated delivery finds the operation paid and changes nothing.
// Tips are recorded on the operation and never added to the balance.
func (s *Service) ConfirmPayment(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.ConfirmationResult, error) {
	if totalPaid.IsNegative() {
		return nil, fmt.Errorf("%w: paid amount %s is negative", store.ErrInvalidAmount, totalPaid)
	}
	paidMinor, err := toMinor(totalPaid)
	if err != nil {
		return nil, err
	}

	var chargeId string
	if pc := models.GetPaymentContext(ctx); pc != nil {
		chargeId = pc.ProviderChargeId
		if chargeId == "" {
			chargeId = pc.TelegramChargeId
		}
	}

	zap.L().Info("Processing payment confirmation",
		zap.Int64("operation_id", operationId),
		zap.String("total_paid", totalPaid.String()),
		zap.String("charge_id", chargeId))

	var result *models.ConfirmationResult
	var shortBy decimal.Decimal
	now := s.now()

	err = s.withTx(ctx, "confirm payment", func(tx *sql.Tx) error {
		op, err := getOperation(ctx, tx, operationId)
		if err != nil {
			return err
		}

		if op.Status == models.OperationStatusPaid {
			result = &models.ConfirmationResult{
				OperationId: op.Id,
				UserId:      op.UserId,
				OrderId:     op.OrderId,
				Credited:    decimal.Zero,
				Tips:        op.Tips,
				Duplicate:   true,
			}
			return fmt.Errorf("%w: operation %d", store.ErrDuplicateConfirmation, op.Id)
		}

		requested, err := toMinor(op.Amount)
		if err != nil {
			return err
		}

		tips := paidMinor - requested
		if tips < 0 {
			// The operation stays unpaid; the flag is committed for manual review.
			shortBy = fromMinor(-tips)
			reason := fmt.Sprintf("underpaid: received %s of %s", totalPaid, op.Amount)
			if _, err := tx.ExecContext(ctx, queryFlagOperation, paidMinor, chargeId, reason, op.Id); err != nil {
				return storeFailure("flag underpaid replenishment", err)
			}
			result = &models.ConfirmationResult{OperationId: op.Id, UserId: op.UserId, OrderId: op.OrderId}
			return nil
		}

		res, err := tx.ExecContext(ctx, queryMarkOperationPaid, tips, paidMinor, chargeId, now, op.Id)
		if err != nil {
			return storeFailure("mark replenishment paid", err)
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return storeFailure("mark replenishment paid rows affected", err)
		}
		if rowsAffected == 0 {
			result = &models.ConfirmationResult{OperationId: op.Id, UserId: op.UserId, OrderId: op.OrderId, Credited: decimal.Zero, Duplicate: true}
			return fmt.Errorf("%w: operation %d", store.ErrDuplicateConfirmation, op.Id)
		}

		if err := credit(ctx, tx, op.UserId, requested, now); err != nil {
			return err
		}

		_, err = recordTransaction(ctx, tx, transactionParams{
			UserId:      op.UserId,
			Kind:        models.TransactionKindReplenishment,
			Amount:      requested,
			OrderId:     op.OrderId,
			OperationId: &op.Id,
			Reference:   operationRef(op.Id),
		}, now)
		if err != nil {
			return err
		}

		result = &models.ConfirmationResult{
			OperationId: op.Id,
			UserId:      op.UserId,
			OrderId:     op.OrderId,
			Credited:    op.Amount,
			Tips:        fromMinor(tips),
		}
		return nil
	})
	if store.IsDuplicate(err) {
		zap.L().Info("Duplicate payment confirmation ignored",
			zap.Int64("operation_id", operationId),
			zap.Int64("user_id", result.UserId))
		return result, nil
	}
	if err != nil {
		if store.IsNotFound(err) {
			zap.L().Warn("Payment confirmation for unknown operation dropped", zap.Int64("operation_id", operationId), zap.Error(err))
		} else {
			zap.L().Error("Payment confirmation failed", zap.Int64("operation_id", operationId), zap.Error(err))
		}
		return nil, err
	}

	if shortBy.IsPositive() {
		zap.L().Warn("Underpayment flagged for review",
			zap.Int64("operation_id", operationId),
			zap.Int64("user_id", result.UserId),
			zap.String("total_paid", totalPaid.String()),
			zap.String("short_by", shortBy.String()))
		return nil, fmt.Errorf("%w: operation %d short by %s", store.ErrUnderpayment, operationId, shortBy)
	}

	zap.L().Info("Payment confirmed",
		zap.Int64("operation_id", operationId),
		zap.Int64("user_id", result.UserId),
		zap.String("credited", result.Credited.String()),
		zap.String("tips", result.Tips.String()))

	return result, nil
}
