package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"campus-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(path string) models.DatabaseConfig {
	return models.DatabaseConfig{
		Path:            path,
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
	}
}

func setupTestDb(t *testing.T) *Service {
	t.Helper()

	service, err := NewService(context.Background(), testConfig(filepath.Join(t.TempDir(), "ledger.db")))
	require.NoError(t, err)
	t.Cleanup(service.Close)
	return service
}

// seedUser registers a user and funds them through a confirmed replenishment so
// the audit trail matches the balance.
func seedUser(t *testing.T, s *Service, userId int64, balance string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.EnsureUser(ctx, userId, "user", "group")
	require.NoError(t, err)

	amount := decimal.RequireFromString(balance)
	if !amount.IsPositive() {
		return
	}
	opId, err := s.CreateReplenishment(ctx, userId, amount)
	require.NoError(t, err)
	_, err = s.ConfirmPayment(ctx, opId, amount)
	require.NoError(t, err)
}

func requireBalance(t *testing.T, s *Service, userId int64, balance, reserved string) {
	t.Helper()

	got, err := s.GetUserBalance(context.Background(), userId)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString(balance)), "balance: got %s, want %s", got.Balance, balance)
	assert.True(t, got.Reserved.Equal(decimal.RequireFromString(reserved)), "reserved: got %s, want %s", got.Reserved, reserved)
}

func TestNewService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*models.DatabaseConfig)
	}{
		{"empty path", func(c *models.DatabaseConfig) { c.Path = "" }},
		{"zero open conns", func(c *models.DatabaseConfig) { c.MaxOpenConns = 0 }},
		{"negative idle conns", func(c *models.DatabaseConfig) { c.MaxIdleConns = -1 }},
		{"zero ping timeout", func(c *models.DatabaseConfig) { c.PingTimeout = 0 }},
		{"negative busy timeout", func(c *models.DatabaseConfig) { c.BusyTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(filepath.Join(t.TempDir(), "ledger.db"))
			tt.modify(&cfg)

			_, err := NewService(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewService_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	first, err := NewService(ctx, testConfig(path))
	require.NoError(t, err)
	seedUser(t, first, 1, "125.50")
	first.Close()

	second, err := NewService(ctx, testConfig(path))
	require.NoError(t, err)
	defer second.Close()

	requireBalance(t, second, 1, "125.50", "0")
}

func TestDSN(t *testing.T) {
	got := dsn(testConfig("/tmp/ledger.db"))
	assert.Contains(t, got, "/tmp/ledger.db?")
	assert.Contains(t, got, "_busy_timeout=5000")
	assert.Contains(t, got, "_txlock=immediate")
	assert.Contains(t, got, "_journal_mode=WAL")
}

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"500", 50000, false},
		{"0.01", 1, false},
		{"12.3", 1230, false},
		{"-4.5", -450, false},
		{"1.005", 0, true},
		{"100000000000000000000", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := toMinor(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, fromMinor(got).Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}
