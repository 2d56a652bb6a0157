/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"

	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TopUp creates a replenishment operation for a standalone balance top-up
func (s *LedgerService) TopUp(ctx context.Context, userId int64, amount decimal.Decimal) (*models.TopUpResult, error) {
	zap.L().Info("Creating top-up", zap.Int64("user_id", userId), zap.String("amount", amount.String()))

	// Validate input
	if userId <= 0 || !amount.IsPositive() {
		return &models.TopUpResult{Success: false, Error: "invalid top-up parameters"}, nil
	}
	if s.cfg.MinTopUp.IsPositive() && amount.LessThan(s.cfg.MinTopUp) {
		return &models.TopUpResult{Success: false, Error: "amount is below the minimum top-up of " + s.cfg.MinTopUp.String()}, nil
	}
	if s.cfg.MaxTopUp.IsPositive() && amount.GreaterThan(s.cfg.MaxTopUp) {
		return &models.TopUpResult{Success: false, Error: "amount is above the maximum top-up of " + s.cfg.MaxTopUp.String()}, nil
	}

	operationId, err := s.store.CreateReplenishment(ctx, userId, amount)
	if err != nil {
		if store.IsRetryable(err) {
			return nil, err
		}
		zap.L().Warn("Top-up rejected", zap.Int64("user_id", userId), zap.Error(err))
		return &models.TopUpResult{Success: false, Error: describe(err)}, nil
	}
	metrics.ReplenishmentsCreatedTotal.Inc()

	return &models.TopUpResult{
		Success:     true,
		OperationId: operationId,
		UserId:      userId,
		Amount:      amount,
	}, nil
}

// ConfirmPayment handles a provider confirmation for an operation. The error is
// non-nil only for transient store failures, which are safe to retry unchanged.
func (s *LedgerService) ConfirmPayment(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.PaymentResult, error) {
	observe := metrics.ObserveConfirmation()

	// Validate input
	if operationId <= 0 || totalPaid.IsNegative() {
		observe("invalid")
		return &models.PaymentResult{Success: false, OperationId: operationId, Error: "invalid payment parameters"}, nil
	}

	confirmation, err := s.store.ConfirmPayment(ctx, operationId, totalPaid)
	if err != nil {
		switch {
		case store.IsRetryable(err):
			observe("retry")
			return &models.PaymentResult{Success: false, Retryable: true, OperationId: operationId, Error: describe(err)}, err
		case store.IsDuplicate(err):
			observe("duplicate")
			return &models.PaymentResult{Success: true, Duplicate: true, OperationId: operationId}, nil
		case errors.Is(err, store.ErrUnderpayment):
			observe("underpaid")
		case errors.Is(err, store.ErrOperationNotFound):
			observe("unknown_operation")
		default:
			observe("rejected")
		}
		return &models.PaymentResult{Success: false, OperationId: operationId, Error: describe(err)}, nil
	}

	result := &models.PaymentResult{
		Success:     true,
		Duplicate:   confirmation.Duplicate,
		OperationId: confirmation.OperationId,
		UserId:      confirmation.UserId,
		OrderId:     confirmation.OrderId,
		Credited:    confirmation.Credited,
		Tips:        confirmation.Tips,
	}

	if confirmation.Duplicate {
		observe("duplicate")
	} else {
		observe("credited")
		s.cache.invalidate(confirmation.UserId)
	}

	if balance, err := s.GetUserBalance(ctx, confirmation.UserId); err == nil {
		result.NewBalance = balance.Balance
	} else {
		zap.L().Error("Failed to get updated balance", zap.Int64("user_id", confirmation.UserId), zap.Error(err))
	}

	return result, nil
}

// GetOperation returns a replenishment operation for invoice validation
func (s *LedgerService) GetOperation(ctx context.Context, operationId int64) (*models.ReplenishmentOperation, error) {
	return s.store.GetOperation(ctx, operationId)
}

// describe turns a store error into a message safe to show to a user
func describe(err error) string {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, store.ErrOperationNotFound):
		return "payment operation not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, store.ErrDuplicateConfirmation):
		return "payment already confirmed"
	case errors.Is(err, store.ErrUnderpayment):
		return "paid amount is below the invoice amount; the payment was held for review"
	case errors.Is(err, store.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, store.ErrInvalidAmount):
		return "invalid amount"
	case errors.Is(err, store.ErrInvalidOrderState), errors.Is(err, store.ErrOrderNotReserved), errors.Is(err, store.ErrAlreadyReserved):
		return "order cannot be changed in its current state"
	case errors.Is(err, store.ErrTransactionFailure):
		return "temporary storage failure, please retry"
	default:
		return "request failed"
	}
}
