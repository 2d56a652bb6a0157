package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campus-wallet-go/internal/api"
	"campus-wallet-go/internal/database"
	"campus-wallet-go/internal/funding"
	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	requests []tgbotapi.Chattable
	sent     []tgbotapi.Chattable
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 8)}
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var texts []string
	for _, c := range b.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (b *fakeBot) lastAnswer(t *testing.T) tgbotapi.PreCheckoutConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	answer, ok := b.requests[len(b.requests)-1].(tgbotapi.PreCheckoutConfig)
	require.True(t, ok)
	return answer
}

func testPayments() models.PaymentsConfig {
	return models.PaymentsConfig{Currency: "RUB", MinorUnitDigits: 2}
}

func setupLedger(t *testing.T) *api.LedgerService {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return api.NewLedgerService(db, funding.NewCoordinator(db, models.FundingModeDirect), api.Config{})
}

func newTestListener(bot Bot, ledger PaymentLedger) *PaymentListener {
	return NewPaymentListener(PaymentListenerConfig{
		Bot:                  bot,
		Ledger:               ledger,
		Payments:             testPayments(),
		PollTimeout:          time.Second,
		DedupWindow:          time.Hour,
		CleanupInterval:      time.Minute,
		RetryMaxElapsed:      200 * time.Millisecond,
		RetryInitialInterval: 5 * time.Millisecond,
	})
}

// openTopUp registers a user and creates an awaiting operation for them
func openTopUp(t *testing.T, ledger *api.LedgerService, userId int64, amount int64) int64 {
	t.Helper()
	ctx := context.Background()

	_, err := ledger.RegisterUser(ctx, userId, "Student", "IU7-21")
	require.NoError(t, err)

	result, err := ledger.TopUp(ctx, userId, decimal.NewFromInt(amount))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	return result.OperationId
}

func paymentUpdate(userId, operationId int64, total int, chargeId string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Chat: &tgbotapi.Chat{ID: userId},
			SuccessfulPayment: &tgbotapi.SuccessfulPayment{
				Currency:                "RUB",
				TotalAmount:             total,
				InvoicePayload:          fmt.Sprintf("%d", operationId),
				TelegramPaymentChargeID: chargeId,
				ProviderPaymentChargeID: "provider-" + chargeId,
			},
		},
	}
}

func checkoutUpdate(userId int64, payload, currency string, total int) tgbotapi.Update {
	return tgbotapi.Update{
		PreCheckoutQuery: &tgbotapi.PreCheckoutQuery{
			ID:             "query-1",
			From:           &tgbotapi.User{ID: userId},
			Currency:       currency,
			TotalAmount:    total,
			InvoicePayload: payload,
		},
	}
}

func requireBalance(t *testing.T, ledger *api.LedgerService, userId int64, want string) {
	t.Helper()
	balance, err := ledger.GetUserBalance(context.Background(), userId)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString(want)),
		"balance: want %s, got %s", want, balance.Balance)
}

func TestHandlePreCheckout(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	operationId := openTopUp(t, ledger, 100, 500)
	payload := fmt.Sprintf("%d", operationId)

	paidId := openTopUp(t, ledger, 100, 50)
	_, err := ledger.ConfirmPayment(ctx, paidId, decimal.NewFromInt(50))
	require.NoError(t, err)

	tests := []struct {
		name   string
		update tgbotapi.Update
		reason string
	}{
		{"exact amount", checkoutUpdate(100, payload, "RUB", 50000), ""},
		{"with tip", checkoutUpdate(100, payload, "RUB", 55000), ""},
		{"below amount", checkoutUpdate(100, payload, "RUB", 49999), checkoutAmountTooLow},
		{"other user", checkoutUpdate(200, payload, "RUB", 50000), checkoutWrongUser},
		{"other currency", checkoutUpdate(100, payload, "USD", 50000), checkoutWrongCurrency},
		{"garbage payload", checkoutUpdate(100, "order-7", "RUB", 50000), checkoutUnknownInvoice},
		{"unknown operation", checkoutUpdate(100, "9999", "RUB", 50000), checkoutUnknownInvoice},
		{"already paid", checkoutUpdate(100, fmt.Sprintf("%d", paidId), "RUB", 5000), checkoutAlreadyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newFakeBot()
			l := newTestListener(bot, ledger)

			l.handleUpdate(ctx, tt.update)

			answer := bot.lastAnswer(t)
			assert.Equal(t, "query-1", answer.PreCheckoutQueryID)
			assert.Equal(t, tt.reason == "", answer.OK)
			assert.Equal(t, tt.reason, answer.ErrorMessage)
		})
	}
}

func TestSuccessfulPayment_CreditsOnce(t *testing.T) {
	ledger := setupLedger(t)
	bot := newFakeBot()
	l := newTestListener(bot, ledger)
	ctx := context.Background()

	operationId := openTopUp(t, ledger, 100, 500)

	// Paid 520.00: 500 principal plus a 20 tip
	update := paymentUpdate(100, operationId, 52000, "charge-1")
	l.handleUpdate(ctx, update)
	l.handleUpdate(ctx, update)

	requireBalance(t, ledger, 100, "500")
	assert.True(t, l.isTransactionProcessed("charge-1"))

	messages := bot.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "500.00 RUB credited")
	assert.Contains(t, messages[0], "20.00 RUB tip")

	op, err := ledger.GetOperation(ctx, operationId)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusPaid, op.Status)
	assert.Equal(t, "provider-charge-1", op.ProviderChargeId)
}

func TestSuccessfulPayment_RedeliveryAfterRestart(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()
	operationId := openTopUp(t, ledger, 100, 300)

	first := newFakeBot()
	newTestListener(first, ledger).handleUpdate(ctx, paymentUpdate(100, operationId, 30000, "charge-1"))

	// A fresh listener has no memory of the charge; the store still confirms once.
	second := newFakeBot()
	restarted := newTestListener(second, ledger)
	restarted.handleUpdate(ctx, paymentUpdate(100, operationId, 30000, "charge-1"))

	requireBalance(t, ledger, 100, "300")
	assert.Len(t, first.messages(), 1)
	assert.Empty(t, second.messages())
	assert.True(t, restarted.isTransactionProcessed("charge-1"))
}

func TestSuccessfulPayment_Underpaid(t *testing.T) {
	ledger := setupLedger(t)
	bot := newFakeBot()
	l := newTestListener(bot, ledger)
	ctx := context.Background()

	operationId := openTopUp(t, ledger, 100, 500)
	l.handleUpdate(ctx, paymentUpdate(100, operationId, 40000, "charge-1"))

	requireBalance(t, ledger, 100, "0")

	messages := bot.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "administrator will review")

	op, err := ledger.GetOperation(ctx, operationId)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusAwaitingPayment, op.Status)
}

func TestSuccessfulPayment_CurrencyMismatch(t *testing.T) {
	ledger := setupLedger(t)
	bot := newFakeBot()
	l := newTestListener(bot, ledger)
	ctx := context.Background()

	operationId := openTopUp(t, ledger, 100, 500)
	update := paymentUpdate(100, operationId, 50000, "charge-1")
	update.Message.SuccessfulPayment.Currency = "USD"
	l.handleUpdate(ctx, update)

	requireBalance(t, ledger, 100, "0")
	assert.Len(t, bot.messages(), 1)
}

// flakyLedger fails a fixed number of confirmations with a store failure
type flakyLedger struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyLedger) GetOperation(ctx context.Context, operationId int64) (*models.ReplenishmentOperation, error) {
	return nil, store.ErrOperationNotFound
}

func (f *flakyLedger) ConfirmPayment(ctx context.Context, operationId int64, totalPaid decimal.Decimal) (*models.PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return &models.PaymentResult{Retryable: true}, fmt.Errorf("%w: commit: database is locked", store.ErrTransactionFailure)
	}
	return &models.PaymentResult{
		Success:     true,
		OperationId: operationId,
		Credited:    totalPaid,
		NewBalance:  totalPaid,
	}, nil
}

func TestSuccessfulPayment_RetriesStoreFailures(t *testing.T) {
	ledger := &flakyLedger{failures: 2}
	bot := newFakeBot()
	l := newTestListener(bot, ledger)

	before := testutil.ToFloat64(metrics.ListenerRetriesTotal)
	l.handleUpdate(context.Background(), paymentUpdate(100, 7, 10000, "charge-1"))

	assert.Equal(t, 3, ledger.calls)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ListenerRetriesTotal))
	assert.True(t, l.isTransactionProcessed("charge-1"))
	assert.Len(t, bot.messages(), 1)
}

func TestSuccessfulPayment_RetriesExhausted(t *testing.T) {
	ledger := &flakyLedger{failures: 1 << 20}
	bot := newFakeBot()
	l := newTestListener(bot, ledger)

	l.handleUpdate(context.Background(), paymentUpdate(100, 7, 10000, "charge-1"))

	assert.Greater(t, ledger.calls, 1)
	assert.False(t, l.isTransactionProcessed("charge-1"))
	assert.Empty(t, bot.messages())
}

func TestStartStop(t *testing.T) {
	ledger := setupLedger(t)
	bot := newFakeBot()
	l := newTestListener(bot, ledger)

	operationId := openTopUp(t, ledger, 100, 250)

	require.NoError(t, l.Start(context.Background()))
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello"}}
	bot.updates <- paymentUpdate(100, operationId, 25000, "charge-1")

	assert.Eventually(t, func() bool {
		return len(bot.messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	l.Stop()
	requireBalance(t, ledger, 100, "250")

	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.True(t, bot.stopped)
}

func TestStart_InvalidConfig(t *testing.T) {
	l := NewPaymentListener(PaymentListenerConfig{Bot: newFakeBot()})
	assert.Error(t, l.Start(context.Background()))
}

// requireStopReturns fails the test when Stop blocks
func requireStopReturns(t *testing.T, l *PaymentListener) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStop_WithoutStart(t *testing.T) {
	l := newTestListener(newFakeBot(), &flakyLedger{})
	requireStopReturns(t, l)
}

func TestStop_AfterFailedStart(t *testing.T) {
	l := NewPaymentListener(PaymentListenerConfig{Bot: newFakeBot()})
	require.Error(t, l.Start(context.Background()))
	requireStopReturns(t, l)
}

func TestStop_Twice(t *testing.T) {
	l := newTestListener(newFakeBot(), &flakyLedger{})
	require.NoError(t, l.Start(context.Background()))
	assert.Error(t, l.Start(context.Background()), "second start must be refused")

	requireStopReturns(t, l)
	requireStopReturns(t, l)
}

func TestStart_MinorUnitsFinerThanLedger(t *testing.T) {
	payments := testPayments()
	payments.MinorUnitDigits = 3

	l := NewPaymentListener(PaymentListenerConfig{
		Bot:             newFakeBot(),
		Ledger:          &flakyLedger{},
		Payments:        payments,
		DedupWindow:     time.Hour,
		CleanupInterval: time.Minute,
	})
	err := l.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger scale")
	requireStopReturns(t, l)
}

func TestCleanupProcessedTransactions(t *testing.T) {
	l := newTestListener(newFakeBot(), &flakyLedger{})

	l.markTransactionProcessed("fresh")
	l.mutex.Lock()
	l.processedTxIds["stale"] = time.Now().Add(-2 * time.Hour)
	l.mutex.Unlock()

	l.cleanupProcessedTransactions()

	assert.True(t, l.isTransactionProcessed("fresh"))
	assert.False(t, l.isTransactionProcessed("stale"))
}

func TestReceiptText(t *testing.T) {
	orderId := int64(12)

	text := receiptText(&models.PaymentResult{
		Success:    true,
		Credited:   decimal.NewFromInt(150),
		NewBalance: decimal.NewFromInt(150),
		OrderId:    &orderId,
	}, "RUB")
	assert.Equal(t, `Payment received: 150.00 RUB credited to your balance. Current balance: 150.00 RUB. Press "Check payment" to publish order #12.`, text)

	text = receiptText(&models.PaymentResult{Error: "payment operation not found"}, "RUB")
	assert.Contains(t, text, "payment operation not found")
}
