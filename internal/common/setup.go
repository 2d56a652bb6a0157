package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"campus-wallet-go/internal/api"
	"campus-wallet-go/internal/database"
	"campus-wallet-go/internal/funding"
	"campus-wallet-go/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Orders     *funding.Coordinator
	ApiService *api.LedgerService
	Payments   *models.PaymentsConfig
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the ledger and wires the funding coordinator and facade
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	zap.L().Info("Loading payment settings", zap.String("file", cfg.Listener.PaymentsFile))
	payments, err := LoadPaymentsConfig(cfg.Listener.PaymentsFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	orders := funding.NewCoordinator(dbService, cfg.Funding.Mode)
	apiService := api.NewLedgerService(dbService, orders, api.Config{
		Cache:    cfg.Cache,
		MinTopUp: payments.MinTopUp,
		MaxTopUp: payments.MaxTopUp,
	})

	zap.L().Info("Using funding mode", zap.String("mode", string(orders.Mode())))

	return &Services{
		DbService:  dbService,
		Orders:     orders,
		ApiService: apiService,
		Payments:   payments,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("unable to open ledger: %w", err)
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
