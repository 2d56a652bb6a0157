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
	"os"

	"campus-wallet-go/internal/common"
	"campus-wallet-go/internal/config"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers    int
	mismatches    int
	failedUsers   int
	flaggedOps    int
	escrowHealthy bool
}

func (s reportStats) healthy() bool {
	return s.mismatches == 0 && s.failedUsers == 0 && s.escrowHealthy
}

func printReconciliation(user models.User, report *models.UserReconciliation) {
	fmt.Printf("\n┌─ User: %s (%d) [%s]\n", user.Name, user.Id, common.StatusMark(report.Consistent()))
	fmt.Printf("│  Balance:  %14s   trail: %14s\n", report.Balance.StringFixed(2), report.TrailBalance.StringFixed(2))
	fmt.Printf("└  Reserved: %14s   trail: %14s   (%d rows)\n", report.Reserved.StringFixed(2), report.TrailReserved.StringFixed(2), report.TransactionCount)
}

func reconcileUsers(ctx context.Context, users []models.User, dbService store.LedgerStore, verbose bool, logger *zap.Logger) reportStats {
	stats := reportStats{}

	for _, user := range users {
		stats.totalUsers++

		report, err := dbService.ReconcileUser(ctx, user.Id)
		if err != nil {
			stats.failedUsers++
			logger.Error("Failed to reconcile user",
				zap.Int64("user_id", user.Id),
				zap.Error(err))
			continue
		}

		if !report.Consistent() {
			stats.mismatches++
		}
		if verbose || !report.Consistent() {
			printReconciliation(user, report)
		}
	}

	return stats
}

func printEscrow(report *models.EscrowReport) {
	common.PrintHeader("ESCROW INVARIANT", common.DefaultWidth)
	fmt.Printf("Reserved balances:     %s\n", report.TotalReserved.StringFixed(2))
	fmt.Printf("Reserved order prices: %s (%d orders)\n", report.ReservedOrders.StringFixed(2), report.ReservedCount)
	fmt.Printf("Status:                %s\n", common.StatusMark(report.Consistent()))
}

func printFlagged(ops []models.ReplenishmentOperation) {
	common.PrintHeader("OPERATIONS FLAGGED FOR REVIEW", common.DefaultWidth)
	if len(ops) == 0 {
		fmt.Println("none")
		return
	}
	for i, op := range ops {
		paid := "n/a"
		if op.SettledAmount.Valid {
			paid = op.SettledAmount.Decimal.StringFixed(2)
		}
		fmt.Printf("%s op %-6d user %-12d requested %12s paid %12s  %s\n",
			common.BoxPrefix(i == len(ops)-1), op.Id, op.UserId, op.Amount.StringFixed(2), paid, op.ReviewReason)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	userFlag := flag.Int64("user", 0, "Reconcile a single Telegram user id (optional)")
	verboseFlag := flag.Bool("verbose", false, "Print consistent users too")
	flaggedLimit := flag.Int("flagged", 50, "Maximum number of flagged operations to list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("LEDGER RECONCILIATION", common.DefaultWidth)
	stats := reconcileUsers(ctx, users, dbService, *verboseFlag, logger)

	escrow, err := dbService.CheckEscrowInvariant(ctx)
	if err != nil {
		logger.Fatal("Failed to check escrow invariant", zap.Error(err))
	}
	stats.escrowHealthy = escrow.Consistent()
	printEscrow(escrow)

	flagged, err := dbService.ListFlaggedOperations(ctx, *flaggedLimit)
	if err != nil {
		logger.Fatal("Failed to list flagged operations", zap.Error(err))
	}
	stats.flaggedOps = len(flagged)
	printFlagged(flagged)

	summary := fmt.Sprintf("SUMMARY: %d users checked, %d mismatched, %d failed, escrow %s, %d flagged operations",
		stats.totalUsers, stats.mismatches, stats.failedUsers, common.StatusMark(stats.escrowHealthy), stats.flaggedOps)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Reconciliation completed",
		zap.Int("users_checked", stats.totalUsers),
		zap.Int("mismatches", stats.mismatches),
		zap.Int("failed", stats.failedUsers),
		zap.Bool("escrow_consistent", stats.escrowHealthy),
		zap.Int("flagged_operations", stats.flaggedOps))

	if !stats.healthy() {
		loggerCleanup()
		dbService.Close()
		os.Exit(1)
	}
}
