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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserBalance returns the spendable and reserved balance of a user
func (s *Service) GetUserBalance(ctx context.Context, userId int64) (*models.UserBalance, error) {
	balance, reserved, err := readBalance(ctx, s.db, userId)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Retrieved balance",
		zap.Int64("user_id", userId),
		zap.String("balance", balance.String()),
		zap.String("reserved", reserved.String()))

	return &models.UserBalance{UserId: userId, Balance: balance, Reserved: reserved}, nil
}

func readBalance(ctx context.Context, q querier, userId int64) (decimal.Decimal, decimal.Decimal, error) {
	var balance, reserved int64
	err := q.QueryRowContext(ctx, queryGetUserBalance, userId).Scan(&balance, &reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %d", store.ErrUserNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.Int64("user_id", userId), zap.Error(err))
		return decimal.Zero, decimal.Zero, storeFailure("get balance", err)
	}
	return fromMinor(balance), fromMinor(reserved), nil
}

// Credit adds amount to the user's spendable balance in a single statement
func (s *Service) Credit(ctx context.Context, userId int64, amount decimal.Decimal) error {
	minor, err := positiveMinor(amount)
	if err != nil {
		return err
	}

	if err := credit(ctx, s.db, userId, minor, s.now()); err != nil {
		return err
	}

	zap.L().Info("Balance credited", zap.Int64("user_id", userId), zap.String("amount", amount.String()))
	return nil
}

// DebitIfSufficient subtracts amount only if the balance covers it. The check and
// the write are one conditional statement, so concurrent debits can never overspend.
func (s *Service) DebitIfSufficient(ctx context.Context, userId int64, amount decimal.Decimal) (bool, error) {
	minor, err := positiveMinor(amount)
	if err != nil {
		return false, err
	}

	ok, err := debitIfSufficient(ctx, s.db, userId, minor, s.now())
	if err != nil {
		return false, err
	}

	if ok {
		zap.L().Info("Balance debited", zap.Int64("user_id", userId), zap.String("amount", amount.String()))
	} else {
		zap.L().Info("Debit declined, insufficient funds", zap.Int64("user_id", userId), zap.String("amount", amount.String()))
	}
	return ok, nil
}

func credit(ctx context.Context, q querier, userId, minor int64, now time.Time) error {
	result, err := q.ExecContext(ctx, queryCreditBalance, minor, now, userId)
	if err != nil {
		return storeFailure("credit balance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeFailure("credit balance rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", store.ErrUserNotFound, userId)
	}
	return nil
}

func debitIfSufficient(ctx context.Context, q querier, userId, minor int64, now time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, queryDebitIfSufficient, minor, now, userId, minor)
	if err != nil {
		return false, storeFailure("debit balance", err)
	}
	return conditionalOutcome(ctx, q, result, userId)
}

// conditionalOutcome interprets a conditional balance update: one row means it
// took effect, zero rows means either the user is missing or the guard failed.
func conditionalOutcome(ctx context.Context, q querier, result sql.Result, userId int64) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeFailure("balance update rows affected", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	exists, err := userExists(ctx, q, userId)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %d", store.ErrUserNotFound, userId)
	}
	return false, nil
}
