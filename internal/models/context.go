package models

import (
	"context"
	"time"
)

type paymentContextKey struct{}

// PaymentContext carries supplementary provider data through context
// so the store can record it with the confirmation without
// changing the LedgerStore interface.
type PaymentContext struct {
	TelegramChargeId string    // telegram_payment_charge_id
	ProviderChargeId string    // provider_payment_charge_id
	Currency         string    // ISO 4217 code from the invoice
	TotalMinorUnits  int       // total_amount as delivered (minor units)
	ChatId           int64     // chat the receipt was delivered to
	ReceivedAt       time.Time // time the update reached the listener
}

// WithPaymentContext attaches provider payment data to a context.
func WithPaymentContext(ctx context.Context, pc *PaymentContext) context.Context {
	return context.WithValue(ctx, paymentContextKey{}, pc)
}

// GetPaymentContext retrieves provider payment data from context, or nil if absent.
func GetPaymentContext(ctx context.Context) *PaymentContext {
	pc, _ := ctx.Value(paymentContextKey{}).(*PaymentContext)
	return pc
}
