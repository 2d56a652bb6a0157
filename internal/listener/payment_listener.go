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
	"fmt"
	"time"

	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start begins receiving payment updates
func (l *PaymentListener) Start(ctx context.Context) error {
	zap.L().Info("Starting payment listener")

	if l.bot == nil || l.ledger == nil {
		return fmt.Errorf("payment listener requires a bot and a ledger")
	}
	if l.dedupWindow <= 0 || l.cleanupInterval <= 0 {
		return fmt.Errorf("dedup window and cleanup interval must be positive")
	}
	if l.payments.MinorUnitDigits < 0 || l.payments.MinorUnitDigits > models.MaxMinorUnitDigits {
		return fmt.Errorf("minor unit digits %d exceed the ledger scale of %d", l.payments.MinorUnitDigits, models.MaxMinorUnitDigits)
	}

	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("payment listener already started")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = int(l.pollTimeout.Seconds())
	updateConfig.AllowedUpdates = []string{"message", "pre_checkout_query"}

	updates := l.bot.GetUpdatesChan(updateConfig)

	go l.receiveLoop(ctx, updates)
	go l.cleanupLoop(ctx)

	zap.L().Info("Payment listener started successfully",
		zap.Duration("poll_timeout", l.pollTimeout),
		zap.Duration("dedup_window", l.dedupWindow),
		zap.String("currency", l.payments.Currency))

	return nil
}

// Stop gracefully stops the payment listener. It returns at once when Start
// never succeeded and is safe to call more than once.
func (l *PaymentListener) Stop() {
	if !l.started.Load() {
		zap.L().Debug("Payment listener was not running")
		return
	}

	zap.L().Info("Stopping payment listener")
	l.stopOnce.Do(func() { close(l.stopChan) })
	<-l.doneChan
	zap.L().Info("Payment listener stopped")
}

// receiveLoop handles updates one at a time so each charge is applied in arrival order
func (l *PaymentListener) receiveLoop(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(l.doneChan)
	defer l.bot.StopReceivingUpdates()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				zap.L().Warn("Update channel closed")
				return
			}
			l.handleUpdate(ctx, update)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *PaymentListener) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		metrics.ListenerUpdatesTotal.WithLabelValues("pre_checkout").Inc()
		l.handlePreCheckout(ctx, preCheckoutFromUpdate(update.PreCheckoutQuery))
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		metrics.ListenerUpdatesTotal.WithLabelValues("successful_payment").Inc()
		l.handleSuccessfulPayment(ctx, paymentFromMessage(update.Message))
	default:
		metrics.ListenerUpdatesTotal.WithLabelValues("ignored").Inc()
		zap.L().Debug("Ignoring non-payment update", zap.Int("update_id", update.UpdateID))
	}
}

// isTransactionProcessed checks if a charge has already been applied
func (l *PaymentListener) isTransactionProcessed(chargeId string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	_, exists := l.processedTxIds[chargeId]
	return exists
}

// markTransactionProcessed marks a charge as applied
func (l *PaymentListener) markTransactionProcessed(chargeId string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.processedTxIds[chargeId] = time.Now()
}

// cleanupLoop periodically cleans up old processed charges
func (l *PaymentListener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupProcessedTransactions()
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessedTransactions forgets charges older than the dedup window.
// The store rejects repeated confirmations on its own; this only saves a round trip.
func (l *PaymentListener) cleanupProcessedTransactions() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := time.Now().Add(-l.dedupWindow)
	removed := 0

	for chargeId, processedAt := range l.processedTxIds {
		if processedAt.Before(cutoff) {
			delete(l.processedTxIds, chargeId)
			removed++
		}
	}

	if removed > 0 {
		zap.L().Debug("Cleaned up processed charges",
			zap.Int("removed", removed),
			zap.Int("remaining", len(l.processedTxIds)))
	}
}
