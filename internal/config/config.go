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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"campus-wallet-go/internal/models"
)

func Load() (*models.Config, error) {
	pollTimeout, err := getEnvDuration("LISTENER_POLL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	dedupWindow, err := getEnvDuration("LISTENER_DEDUP_WINDOW", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("LISTENER_CLEANUP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	retryMaxElapsed, err := getEnvDuration("LISTENER_RETRY_MAX_ELAPSED", 30*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := getEnvDuration("BALANCE_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	mode := models.FundingMode(getEnvString("FUNDING_MODE", string(models.FundingModeDirect)))
	if mode != models.FundingModeDirect && mode != models.FundingModeEscrow {
		return nil, fmt.Errorf("invalid FUNDING_MODE %q: expected %q or %q", mode, models.FundingModeDirect, models.FundingModeEscrow)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 8),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 4),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Listener: models.ListenerConfig{
			PollTimeout:     pollTimeout,
			DedupWindow:     dedupWindow,
			CleanupInterval: cleanupInterval,
			RetryMaxElapsed: retryMaxElapsed,
			PaymentsFile:    getEnvString("PAYMENTS_FILE", "payments.yaml"),
		},
		Funding: models.FundingConfig{
			Mode: mode,
		},
		Telegram: models.TelegramConfig{
			BotToken:     getEnvString("TELEGRAM_BOT_TOKEN", ""),
			PaymentToken: getEnvString("TG_PAYMENT_TOKEN", ""),
			Debug:        getEnvBool("TELEGRAM_DEBUG", false),
		},
		Cache: models.CacheConfig{
			Size: getEnvInt("BALANCE_CACHE_SIZE", 1024),
			TTL:  cacheTTL,
		},
		Metrics: models.MetricsConfig{
			Addr: getEnvString("METRICS_ADDR", ":9102"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
