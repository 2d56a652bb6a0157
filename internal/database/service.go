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
	"fmt"
	"time"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db  *sql.DB
	now func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx. Helpers that run inside a
// transaction take a querier so they never reach back into the pool.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after migration error", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to migrate schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// OpenDB opens the SQLite file with WAL journaling, a busy timeout and
// immediate transactions, then verifies the connection.
func OpenDB(ctx context.Context, cfg models.DatabaseConfig) (*sql.DB, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	if cfg.BusyTimeout < 0 {
		return nil, fmt.Errorf("busy timeout cannot be negative, got %v", cfg.BusyTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping error", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// dsn builds the go-sqlite3 connection string. _txlock=immediate makes every
// BeginTx take the write lock up front, so concurrent writers queue on the busy
// timeout instead of failing a lock upgrade mid-transaction.
func dsn(cfg models.DatabaseConfig) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Stats reports connection pool statistics.
func (s *Service) Stats() sql.DBStats {
	return s.db.Stats()
}

// withTx runs fn inside one store transaction. Any error returned by fn rolls
// everything back; fn must use only the supplied tx.
func (s *Service) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeFailure(op+": begin", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			zap.L().Warn("Failed to roll back transaction", zap.String("op", op), zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeFailure(op+": commit", err)
	}
	return nil
}

// storeFailure wraps a raw driver error so callers only ever see store sentinels.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrTransactionFailure, op, err)
}

// closeRows closes a result set and logs a failure.
func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
