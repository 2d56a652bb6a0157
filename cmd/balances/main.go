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

package main

import (
	"context"
	"flag"
	"fmt"

	"campus-wallet-go/internal/common"
	"campus-wallet-go/internal/config"
	"campus-wallet-go/internal/database"
	"campus-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers      int
	usersWithFunds  int
	totalBalance    decimal.Decimal
	totalReserved   decimal.Decimal
	transactionRows int
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printTransaction(tx models.Transaction, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-14s %14s  %-22s (id: %s, at: %s)\n",
		symbol,
		tx.Kind,
		tx.Amount.StringFixed(2),
		tx.Reference,
		formatTransactionId(tx.Id),
		tx.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(user models.User) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.GroupName)
	fmt.Printf("│  ID: %d\n", user.Id)
	fmt.Printf("│  Balance: %s   Reserved: %s\n", user.Balance.StringFixed(2), user.ReservedBalance.StringFixed(2))
}

func processUser(ctx context.Context, user models.User, dbService *database.Service, historyLimit int) (int, error) {
	printUserHeader(user)

	if historyLimit <= 0 {
		return 0, nil
	}

	history, err := dbService.GetTransactionHistory(ctx, user.Id, historyLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction history: %w", err)
	}

	for i, tx := range history {
		printTransaction(tx, i == len(history)-1)
	}

	return len(history), nil
}

func processUsersAndGenerateReport(ctx context.Context, users []models.User, dbService *database.Service, historyLimit int, logger *zap.Logger) balanceStats {
	stats := balanceStats{totalBalance: decimal.Zero, totalReserved: decimal.Zero}

	for _, user := range users {
		stats.totalUsers++
		stats.totalBalance = stats.totalBalance.Add(user.Balance)
		stats.totalReserved = stats.totalReserved.Add(user.ReservedBalance)
		if user.Balance.IsPositive() || user.ReservedBalance.IsPositive() {
			stats.usersWithFunds++
		}

		rows, err := processUser(ctx, user, dbService, historyLimit)
		if err != nil {
			logger.Error("Failed to process user",
				zap.Int64("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		stats.transactionRows += rows
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	userFlag := flag.Int64("user", 0, "Filter by Telegram user id (optional)")
	historyFlag := flag.Int("history", 5, "Number of recent transactions to show per user (0 to hide)")
	flag.Parse()

	logger.Info("Starting balance query")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// Initialize users based on filter
	users, err := common.InitializeUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	// Print header
	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	// Process users and generate report
	stats := processUsersAndGenerateReport(ctx, users, dbService, *historyFlag, logger)

	// Print footer summary
	summary := fmt.Sprintf("SUMMARY: %d of %d users hold funds (balance %s, reserved %s)",
		stats.usersWithFunds, stats.totalUsers, stats.totalBalance.StringFixed(2), stats.totalReserved.StringFixed(2))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_funds", stats.usersWithFunds),
		zap.Int("transactions_shown", stats.transactionRows))
}
