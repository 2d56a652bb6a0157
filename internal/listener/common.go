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

package listener

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"campus-wallet-go/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const defaultRetryInitialInterval = 500 * time.Millisecond

// Bot is the part of the Telegram Bot API the listener uses. *tgbotapi.BotAPI satisfies it.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// PaymentLedger confirms provider payments. *api.LedgerService satisfies it.
type PaymentLedger interface {
	GetOperation(ctx context.Context, operationId int64) (*models.ReplenishmentOperation, error)
	ConfirmPayment(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.PaymentResult, error)
}

// PaymentListenerConfig contains configuration for PaymentListener
type PaymentListenerConfig struct {
	Bot                  Bot
	Ledger               PaymentLedger
	Payments             models.PaymentsConfig
	PollTimeout          time.Duration
	DedupWindow          time.Duration
	CleanupInterval      time.Duration
	RetryMaxElapsed      time.Duration
	RetryInitialInterval time.Duration
}

// PaymentListener receives Telegram payment updates and applies them to the ledger
type PaymentListener struct {
	bot      Bot
	ledger   PaymentLedger
	payments models.PaymentsConfig

	// State management for processed charges
	processedTxIds       map[string]time.Time
	mutex                sync.RWMutex
	dedupWindow          time.Duration
	pollTimeout          time.Duration
	cleanupInterval      time.Duration
	retryMaxElapsed      time.Duration
	retryInitialInterval time.Duration

	// Control channels
	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewPaymentListener creates a new payment listener
func NewPaymentListener(cfg PaymentListenerConfig) *PaymentListener {
	retryInitial := cfg.RetryInitialInterval
	if retryInitial <= 0 {
		retryInitial = defaultRetryInitialInterval
	}

	return &PaymentListener{
		bot:                  cfg.Bot,
		ledger:               cfg.Ledger,
		payments:             cfg.Payments,
		processedTxIds:       make(map[string]time.Time),
		dedupWindow:          cfg.DedupWindow,
		pollTimeout:          cfg.PollTimeout,
		cleanupInterval:      cfg.CleanupInterval,
		retryMaxElapsed:      cfg.RetryMaxElapsed,
		retryInitialInterval: retryInitial,
		stopChan:             make(chan struct{}),
		doneChan:             make(chan struct{}),
	}
}

func preCheckoutFromUpdate(q *tgbotapi.PreCheckoutQuery) models.PreCheckout {
	checkout := models.PreCheckout{
		QueryId:        q.ID,
		Currency:       q.Currency,
		TotalAmount:    q.TotalAmount,
		InvoicePayload: q.InvoicePayload,
	}
	if q.From != nil {
		checkout.UserId = q.From.ID
	}
	return checkout
}

func paymentFromMessage(msg *tgbotapi.Message) models.SuccessfulPayment {
	sp := msg.SuccessfulPayment
	payment := models.SuccessfulPayment{
		Currency:                sp.Currency,
		TotalAmount:             sp.TotalAmount,
		InvoicePayload:          sp.InvoicePayload,
		TelegramPaymentChargeId: sp.TelegramPaymentChargeID,
		ProviderPaymentChargeId: sp.ProviderPaymentChargeID,
	}
	if msg.From != nil {
		payment.UserId = msg.From.ID
	}
	if msg.Chat != nil {
		payment.ChatId = msg.Chat.ID
	} else {
		payment.ChatId = payment.UserId
	}
	return payment
}
