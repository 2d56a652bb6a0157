package listener

import (
	"context"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"
	"campus-wallet-go/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	checkoutUnknownInvoice  = "This invoice is no longer valid. Please request a new one."
	checkoutAlreadyPaid     = "This invoice has already been paid."
	checkoutWrongUser       = "This invoice was issued to another user."
	checkoutWrongCurrency   = "This invoice currency is not supported."
	checkoutAmountTooLow    = "The payment amount is below the invoice amount."
	checkoutTemporaryFailed = "Payments are temporarily unavailable. Please try again in a minute."
)

// handlePreCheckout answers a pre-checkout query. Telegram requires an answer
// within ten seconds, so a failed check is answered with an error rather than retried.
func (l *PaymentListener) handlePreCheckout(ctx context.Context, q models.PreCheckout) {
	reason := l.validateCheckout(ctx, q)

	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.QueryId,
		OK:                 reason == "",
		ErrorMessage:       reason,
	}

	if _, err := l.bot.Request(answer); err != nil {
		zap.L().Error("Failed to answer pre-checkout query",
			zap.String("query_id", q.QueryId),
			zap.Int64("user_id", q.UserId),
			zap.Error(err))
		return
	}

	if reason != "" {
		zap.L().Warn("Pre-checkout rejected",
			zap.String("query_id", q.QueryId),
			zap.Int64("user_id", q.UserId),
			zap.String("payload", q.InvoicePayload),
			zap.String("reason", reason))
		return
	}

	zap.L().Info("Pre-checkout approved",
		zap.String("query_id", q.QueryId),
		zap.Int64("user_id", q.UserId),
		zap.String("payload", q.InvoicePayload),
		zap.Int("total_amount", q.TotalAmount))
}

// validateCheckout returns an empty string when the payment may proceed
func (l *PaymentListener) validateCheckout(ctx context.Context, q models.PreCheckout) string {
	operationId, err := telegram.ParsePayload(q.InvoicePayload)
	if err != nil {
		return checkoutUnknownInvoice
	}

	op, err := l.ledger.GetOperation(ctx, operationId)
	if err != nil {
		if store.IsNotFound(err) {
			return checkoutUnknownInvoice
		}
		zap.L().Error("Failed to load operation for pre-checkout",
			zap.Int64("operation_id", operationId),
			zap.Error(err))
		return checkoutTemporaryFailed
	}

	if op.Status != models.OperationStatusAwaitingPayment {
		return checkoutAlreadyPaid
	}
	if op.UserId != q.UserId {
		return checkoutWrongUser
	}
	if q.Currency != l.payments.Currency {
		return checkoutWrongCurrency
	}

	requested, err := telegram.ToMinorUnits(op.Amount, l.payments.MinorUnitDigits)
	if err != nil {
		zap.L().Error("Operation amount does not fit provider units",
			zap.Int64("operation_id", operationId),
			zap.String("amount", op.Amount.String()),
			zap.Error(err))
		return checkoutUnknownInvoice
	}
	if q.TotalAmount < requested {
		return checkoutAmountTooLow
	}

	return ""
}
