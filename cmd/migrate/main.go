package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"campus-wallet-go/internal/common"
	"campus-wallet-go/internal/config"
	"campus-wallet-go/internal/database"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

type statusLine struct {
	Version   int64  `json:"version"`
	File      string `json:"file"`
	State     string `json:"state"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func printStatus(ctx context.Context, provider *goose.Provider, asJSON bool) error {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("unable to read migration status: %w", err)
	}

	lines := make([]statusLine, 0, len(statuses))
	for _, s := range statuses {
		line := statusLine{
			Version: s.Source.Version,
			File:    s.Source.Path,
			State:   string(s.State),
		}
		if !s.AppliedAt.IsZero() {
			line.AppliedAt = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		lines = append(lines, line)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}

	common.PrintHeader("MIGRATION STATUS", common.DefaultWidth)
	for i, line := range lines {
		fmt.Printf("%s %05d  %-9s %-19s %s\n",
			common.BoxPrefix(i == len(lines)-1), line.Version, line.State, line.AppliedAt, line.File)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func run(ctx context.Context, provider *goose.Provider, command string, asJSON bool) error {
	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("unable to apply migrations: %w", err)
		}
		for _, r := range results {
			zap.L().Info("Applied migration",
				zap.Int64("version", r.Source.Version),
				zap.String("file", r.Source.Path),
				zap.Duration("duration", r.Duration))
		}
		if len(results) == 0 {
			zap.L().Info("Schema is up to date")
		}
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("unable to roll back migration: %w", err)
		}
		zap.L().Info("Rolled back migration",
			zap.Int64("version", result.Source.Version),
			zap.String("file", result.Source.Path))
	case "status":
		return printStatus(ctx, provider, asJSON)
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("unable to read schema version: %w", err)
		}
		fmt.Println(version)
	default:
		return fmt.Errorf("unknown command %q: expected up, down, status or version", command)
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	commandFlag := flag.String("command", "up", "Migration command: up, down, status, version")
	jsonFlag := flag.Bool("json", false, "Print status as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.OpenDB(ctx, cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zap.L().Warn("Failed to close database", zap.Error(err))
		}
	}()

	provider, err := database.NewMigrator(db)
	if err != nil {
		zap.L().Fatal("Failed to create migrator", zap.Error(err))
	}

	zap.L().Info("Running migration command",
		zap.String("command", *commandFlag),
		zap.String("database", cfg.Database.Path))

	if err := run(ctx, provider, *commandFlag, *jsonFlag); err != nil {
		zap.L().Fatal("Migration command failed", zap.Error(err))
	}
}
