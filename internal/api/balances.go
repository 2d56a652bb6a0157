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
	"fmt"

	"campus-wallet-go/internal/models"

	"go.uber.org/zap"
)

// GetUserBalance returns the balance for display, served from the cache when fresh
func (s *LedgerService) GetUserBalance(ctx context.Context, userId int64) (*models.UserBalance, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	if cached, ok := s.cache.get(userId); ok {
		return &cached, nil
	}

	balance, err := s.store.GetUserBalance(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balance", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance: %w", err)
	}

	s.cache.put(*balance)
	return balance, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId int64, limit, offset int) ([]models.TransactionRecord, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.store.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.Int64("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = models.TransactionRecord{
			Id:          tx.Id,
			Kind:        tx.Kind,
			Amount:      tx.Amount,
			OrderId:     tx.OrderId,
			OperationId: tx.OperationId,
			Reference:   tx.Reference,
			ProcessedAt: tx.CreatedAt,
		}
	}

	return result, nil
}

// Reconcile checks one user's balances against the audit trail
func (s *LedgerService) Reconcile(ctx context.Context, userId int64) (*models.UserReconciliation, error) {
	return s.store.ReconcileUser(ctx, userId)
}
