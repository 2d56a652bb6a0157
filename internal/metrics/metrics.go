// Package metrics provides Prometheus instrumentation for the wallet ledger.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "campus_wallet"

var (
	// ConfirmationsTotal counts payment confirmations by result.
	ConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Total payment confirmations by result.",
		},
		[]string{"result"},
	)

	// ConfirmationDuration observes confirmation latency.
	ConfirmationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_confirmation_duration_seconds",
			Help:      "Payment confirmation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)

	// OrderSubmissionsTotal counts order submissions by funding mode and outcome.
	OrderSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submissions_total",
			Help:      "Total order submissions by funding mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// EscrowOperationsTotal counts escrow operations by type and result.
	EscrowOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_operations_total",
			Help:      "Total escrow operations by type and result.",
		},
		[]string{"op", "result"},
	)

	// ReplenishmentsCreatedTotal counts top-up operations created.
	ReplenishmentsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replenishments_created_total",
		Help:      "Total replenishment operations created.",
	})

	// ListenerUpdatesTotal counts Telegram updates handled by the payment listener.
	ListenerUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_updates_total",
			Help:      "Total Telegram updates handled by type.",
		},
		[]string{"type"},
	)

	// ListenerRetriesTotal counts confirmation retries after store failures.
	ListenerRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_retries_total",
		Help:      "Total confirmation retries after transient store failures.",
	})

	// BalanceCacheTotal counts balance cache lookups by result.
	BalanceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_lookups_total",
			Help:      "Balance display cache lookups by result.",
		},
		[]string{"result"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
)

func init() {
	prometheus.MustRegister(
		ConfirmationsTotal,
		ConfirmationDuration,
		OrderSubmissionsTotal,
		EscrowOperationsTotal,
		ReplenishmentsCreatedTotal,
		ListenerUpdatesTotal,
		ListenerRetriesTotal,
		BalanceCacheTotal,
		DBOpenConnections,
		DBInUseConnections,
		DBWaitCount,
	)
}

// ObserveConfirmation returns a function that records the confirmation result and duration.
func ObserveConfirmation() func(result string) {
	start := time.Now()
	return func(result string) {
		ConfirmationsTotal.WithLabelValues(result).Inc()
		ConfirmationDuration.Observe(time.Since(start).Seconds())
	}
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatsSource is satisfied by *sql.DB.
type StatsSource interface {
	Stats() sql.DBStats
}

// StartDBStatsCollector periodically samples connection pool stats into gauges.
// Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
		}
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("Serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
