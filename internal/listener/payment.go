package listener

import (
	"context"
	"fmt"
	"time"

	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"
	"campus-wallet-go/internal/telegram"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// handleSuccessfulPayment applies a provider receipt to the ledger. Receipts may be
// delivered more than once; the store confirms each operation at most once.
func (l *PaymentListener) handleSuccessfulPayment(ctx context.Context, p models.SuccessfulPayment) {
	chargeId := p.TelegramPaymentChargeId
	if chargeId != "" && l.isTransactionProcessed(chargeId) {
		metrics.ListenerUpdatesTotal.WithLabelValues("duplicate_update").Inc()
		zap.L().Debug("Skipping already processed charge", zap.String("charge_id", chargeId))
		return
	}

	operationId, err := telegram.ParsePayload(p.InvoicePayload)
	if err != nil {
		zap.L().Warn("Dropping payment with unknown payload",
			zap.String("charge_id", chargeId),
			zap.Int64("user_id", p.UserId),
			zap.Error(err))
		l.markTransactionProcessed(chargeId)
		return
	}

	if p.Currency != l.payments.Currency {
		zap.L().Error("Payment currency does not match configured currency",
			zap.String("charge_id", chargeId),
			zap.Int64("operation_id", operationId),
			zap.String("currency", p.Currency),
			zap.String("expected", l.payments.Currency))
		l.markTransactionProcessed(chargeId)
		l.notify(p.ChatId, "We could not apply your payment automatically. An administrator will review it.")
		return
	}

	totalPaid := telegram.FromMinorUnits(p.TotalAmount, l.payments.MinorUnitDigits)

	ctx = models.WithPaymentContext(ctx, &models.PaymentContext{
		TelegramChargeId: p.TelegramPaymentChargeId,
		ProviderChargeId: p.ProviderPaymentChargeId,
		Currency:         p.Currency,
		TotalMinorUnits:  p.TotalAmount,
		ChatId:           p.ChatId,
		ReceivedAt:       time.Now().UTC(),
	})

	zap.L().Info("Processing successful payment",
		zap.String("charge_id", chargeId),
		zap.Int64("operation_id", operationId),
		zap.Int64("user_id", p.UserId),
		zap.String("total_paid", totalPaid.String()))

	result, err := l.confirmWithRetry(ctx, operationId, totalPaid)
	if err != nil {
		// Left unmarked so a redelivery of the same receipt is applied.
		zap.L().Error("Payment confirmation failed",
			zap.String("charge_id", chargeId),
			zap.Int64("operation_id", operationId),
			zap.String("total_paid", totalPaid.String()),
			zap.Error(err))
		return
	}

	l.markTransactionProcessed(chargeId)

	if result.Duplicate {
		zap.L().Info("Payment already confirmed", zap.Int64("operation_id", operationId))
		return
	}

	l.notify(p.ChatId, receiptText(result, l.payments.Currency))
}

// confirmWithRetry retries transient store failures with exponential backoff.
// Every other outcome is final and reported through the result.
func (l *PaymentListener) confirmWithRetry(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.PaymentResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInitialInterval
	b.MaxElapsedTime = l.retryMaxElapsed

	var result *models.PaymentResult
	operation := func() error {
		res, err := l.ledger.ConfirmPayment(ctx, operationId, totalPaid)
		if err != nil {
			if store.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.ListenerRetriesTotal.Inc()
		zap.L().Warn("Retrying payment confirmation",
			zap.Int64("operation_id", operationId),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *PaymentListener) notify(chatId int64, text string) {
	if chatId == 0 || text == "" {
		return
	}
	if _, err := l.bot.Send(tgbotapi.NewMessage(chatId, text)); err != nil {
		zap.L().Warn("Failed to send payment receipt", zap.Int64("chat_id", chatId), zap.Error(err))
	}
}

func receiptText(result *models.PaymentResult, currency string) string {
	if !result.Success {
		return fmt.Sprintf("We could not apply your payment automatically: %s. An administrator will review it.", result.Error)
	}

	text := fmt.Sprintf("Payment received: %s %s credited to your balance.", result.Credited.StringFixed(2), currency)
	if result.Tips.IsPositive() {
		text += fmt.Sprintf(" Thank you for the %s %s tip!", result.Tips.StringFixed(2), currency)
	}
	text += fmt.Sprintf(" Current balance: %s %s.", result.NewBalance.StringFixed(2), currency)
	if result.OrderId != nil {
		text += fmt.Sprintf(" Press \"Check payment\" to publish order #%d.", *result.OrderId)
	}
	return text
}
