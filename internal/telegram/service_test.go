package telegram

import (
	"testing"

	"campus-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayments() models.PaymentsConfig {
	return models.PaymentsConfig{
		Currency:        "RUB",
		MinorUnitDigits: 2,
		MaxTip:          decimal.NewFromInt(500),
		SuggestedTips:   []decimal.Decimal{decimal.NewFromInt(50), decimal.NewFromInt(100), decimal.NewFromInt(1000)},
		Invoice: models.InvoiceConfig{
			Title:       "Balance top-up",
			Description: "Top up your wallet",
			Label:       "Top-up",
			StartParam:  "topup",
		},
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		digits  int32
		want    int
		wantErr bool
	}{
		{"500", 2, 50000, false},
		{"0.01", 2, 1, false},
		{"12.345", 2, 0, true},
		{"1000", 0, 1000, false},
		{"99999999999", 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.digits)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, FromMinorUnits(got, tt.digits).Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestPayload(t *testing.T) {
	id, err := ParsePayload(FormatPayload(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "-1", "0", "12x"} {
		_, err := ParsePayload(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildInvoice(t *testing.T) {
	invoice, err := BuildInvoice(777, 15, decimal.RequireFromString("250.50"), testPayments(), "provider-token")
	require.NoError(t, err)

	assert.Equal(t, int64(777), invoice.ChatID)
	assert.Equal(t, "15", invoice.Payload)
	assert.Equal(t, "RUB", invoice.Currency)
	assert.Equal(t, "provider-token", invoice.ProviderToken)
	require.Len(t, invoice.Prices, 1)
	assert.Equal(t, 25050, invoice.Prices[0].Amount)
	assert.Equal(t, 50000, invoice.MaxTipAmount)
	assert.Equal(t, []int{5000, 10000}, invoice.SuggestedTipAmounts)
}

func TestBuildInvoice_NoTips(t *testing.T) {
	payments := testPayments()
	payments.MaxTip = decimal.Zero

	invoice, err := BuildInvoice(1, 2, decimal.NewFromInt(10), payments, "")
	require.NoError(t, err)
	assert.Zero(t, invoice.MaxTipAmount)
	assert.NotNil(t, invoice.SuggestedTipAmounts)
	assert.Empty(t, invoice.SuggestedTipAmounts)
}
