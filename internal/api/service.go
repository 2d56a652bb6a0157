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

	"campus-wallet-go/internal/funding"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

// Config holds the facade settings
type Config struct {
	Cache    models.CacheConfig
	MinTopUp decimal.Decimal
	MaxTopUp decimal.Decimal
}

// LedgerService is the entry point the bot handlers call. It validates input,
// logs, and keeps a display-only balance cache that the core never reads.
type LedgerService struct {
	store  store.LedgerStore
	orders *funding.Coordinator
	cache  *balanceCache
	cfg    Config
}

func NewLedgerService(s store.LedgerStore, orders *funding.Coordinator, cfg Config) *LedgerService {
	return &LedgerService{
		store:  s,
		orders: orders,
		cache:  newBalanceCache(cfg.Cache),
		cfg:    cfg,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// RegisterUser records a user on first interaction
func (s *LedgerService) RegisterUser(ctx context.Context, userId int64, name, groupName string) (*models.User, error) {
	return s.store.EnsureUser(ctx, userId, name, groupName)
}
