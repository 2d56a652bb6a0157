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

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var balance, reserved int64
	err := row.Scan(&user.Id, &user.Name, &user.GroupName, &user.Role, &balance, &reserved, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Balance = fromMinor(balance)
	user.ReservedBalance = fromMinor(reserved)
	return &user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, storeFailure("query users", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, storeFailure("scan user row", err)
		}
		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, storeFailure("iterate user rows", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId int64) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.Int64("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", store.ErrUserNotFound, userId)
		}
		zap.L().Error("Failed to query user by ID", zap.Int64("user_id", userId), zap.Error(err))
		return nil, storeFailure("query user by id", err)
	}

	zap.L().Debug("Retrieved user by ID", zap.Int64("user_id", userId), zap.String("name", user.Name))
	return user, nil
}

// EnsureUser registers a user on first interaction. An existing user is returned unchanged.
func (s *Service) EnsureUser(ctx context.Context, userId int64, name, groupName string) (*models.User, error) {
	if userId <= 0 {
		return nil, fmt.Errorf("user id must be positive, got %d", userId)
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, queryInsertUser, userId, name, groupName, now, now)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.Int64("user_id", userId), zap.Error(err))
		return nil, storeFailure("insert user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, storeFailure("insert user rows affected", err)
	}

	if rowsAffected > 0 {
		zap.L().Info("User registered", zap.Int64("user_id", userId), zap.String("name", name), zap.String("group", groupName))
	}

	return s.GetUserById(ctx, userId)
}

// userExists distinguishes "no such user" from "condition not met" after a conditional update.
func userExists(ctx context.Context, q querier, userId int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, queryUserExists, userId).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeFailure("check user exists", err)
	}
	return true, nil
}
