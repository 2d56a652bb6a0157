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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-wallet-go/internal/common"
	"campus-wallet-go/internal/config"
	"campus-wallet-go/internal/listener"
	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/telegram"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting campus wallet payment listener")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := services.ApiService.HealthCheck(ctx); err != nil {
		zap.L().Fatal("Ledger health check failed", zap.Error(err))
	}

	tg, err := telegram.NewService(cfg.Telegram, *services.Payments)
	if err != nil {
		zap.L().Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}

	go metrics.StartDBStatsCollector(ctx, services.DbService, 15*time.Second)
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			zap.L().Error("Metrics server failed", zap.Error(err))
		}
	}()

	l := listener.NewPaymentListener(listener.PaymentListenerConfig{
		Bot:             tg.Bot(),
		Ledger:          services.ApiService,
		Payments:        *services.Payments,
		PollTimeout:     cfg.Listener.PollTimeout,
		DedupWindow:     cfg.Listener.DedupWindow,
		CleanupInterval: cfg.Listener.CleanupInterval,
		RetryMaxElapsed: cfg.Listener.RetryMaxElapsed,
	})

	if err := l.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start payment listener", zap.Error(err))
	}

	zap.L().Info("Payment listener running",
		zap.String("funding_mode", string(services.Orders.Mode())),
		zap.String("metrics_addr", cfg.Metrics.Addr))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping listener...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Listener stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
	cancel()
}
