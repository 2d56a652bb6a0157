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
	"campus-wallet-go/internal/telegram"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type topUpRequest struct {
	userId      int64
	chatId      int64
	amount      decimal.Decimal
	sendInvoice bool
}

func parseAndValidateFlags() (*topUpRequest, error) {
	userFlag := flag.Int64("user", 0, "Telegram user id (required)")
	amountFlag := flag.String("amount", "", "Amount to top up (required)")
	sendFlag := flag.Bool("send", false, "Send a Telegram invoice for the new operation")
	chatFlag := flag.Int64("chat", 0, "Chat to send the invoice to (default: the user's private chat)")
	flag.Parse()

	if *userFlag <= 0 || *amountFlag == "" {
		return nil, fmt.Errorf("all flags are required: --user, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	chatId := *chatFlag
	if chatId == 0 {
		chatId = *userFlag
	}

	return &topUpRequest{
		userId:      *userFlag,
		chatId:      chatId,
		amount:      amount,
		sendInvoice: *sendFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid arguments", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := services.ApiService.TopUp(ctx, req.userId, req.amount)
	if err != nil {
		zap.L().Fatal("Top-up failed, safe to retry", zap.Error(err))
	}
	if !result.Success {
		zap.L().Fatal("Top-up rejected", zap.String("reason", result.Error))
	}

	currency := services.Payments.Currency

	fmt.Println()
	common.PrintHeader("REPLENISHMENT CREATED", common.DefaultWidth)
	fmt.Printf("Operation: %d\n", result.OperationId)
	fmt.Printf("User:      %d\n", result.UserId)
	fmt.Printf("Amount:    %s\n", common.FormatAmount(result.Amount, currency))
	fmt.Printf("Payload:   %s\n", telegram.FormatPayload(result.OperationId))
	common.PrintSeparator("=", common.DefaultWidth)

	if !req.sendInvoice {
		fmt.Println("Invoice not sent (use --send to deliver it through the bot)")
		fmt.Println()
		return
	}

	tg, err := telegram.NewService(cfg.Telegram, *services.Payments)
	if err != nil {
		zap.L().Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}

	if err := tg.SendTopUpInvoice(req.chatId, result.OperationId, result.Amount); err != nil {
		zap.L().Fatal("Failed to send invoice",
			zap.Int64("operation_id", result.OperationId),
			zap.Error(err))
	}

	fmt.Printf("Invoice sent to chat %d\n\n", req.chatId)
}
