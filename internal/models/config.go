package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Listener ListenerConfig
	Funding  FundingConfig
	Telegram TelegramConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ListenerConfig holds payment listener settings
type ListenerConfig struct {
	PollTimeout     time.Duration
	DedupWindow     time.Duration
	CleanupInterval time.Duration
	RetryMaxElapsed time.Duration
	PaymentsFile    string
}

// FundingConfig selects the order funding strategy
type FundingConfig struct {
	Mode FundingMode
}

// TelegramConfig holds bot and payment provider credentials
type TelegramConfig struct {
	BotToken     string
	PaymentToken string
	Debug        bool
}

// CacheConfig holds the balance display cache settings
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Addr string
}
