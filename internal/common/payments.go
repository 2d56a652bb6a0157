package common

import (
	"fmt"
	"os"
	"path/filepath"

	"campus-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// LoadPaymentsConfig reads the payment provider settings. Relative paths are
// resolved against the working directory.
func LoadPaymentsConfig(paymentsFile string) (*models.PaymentsConfig, error) {
	var paymentsPath string
	if filepath.IsAbs(paymentsFile) {
		paymentsPath = paymentsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		paymentsPath = filepath.Join(wd, paymentsFile)
	}

	data, err := os.ReadFile(paymentsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", paymentsFile, err)
	}

	config := models.PaymentsConfig{MinorUnitDigits: 2}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", paymentsFile, err)
	}

	if err := validatePayments(&config); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", paymentsFile, err)
	}

	return &config, nil
}

func validatePayments(config *models.PaymentsConfig) error {
	if len(config.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO 4217 code, got %q", config.Currency)
	}
	if config.MinorUnitDigits < 0 || config.MinorUnitDigits > models.MaxMinorUnitDigits {
		return fmt.Errorf("minor_unit_digits must be between 0 and %d, got %d", models.MaxMinorUnitDigits, config.MinorUnitDigits)
	}
	if config.MinTopUp.IsNegative() || config.MaxTopUp.IsNegative() || config.MaxTip.IsNegative() {
		return fmt.Errorf("amounts cannot be negative")
	}
	if config.MaxTopUp.IsPositive() && config.MinTopUp.GreaterThan(config.MaxTopUp) {
		return fmt.Errorf("min_top_up %s is above max_top_up %s", config.MinTopUp, config.MaxTopUp)
	}
	if len(config.SuggestedTips) > 4 {
		return fmt.Errorf("at most 4 suggested tips are allowed, got %d", len(config.SuggestedTips))
	}

	previous := decimal.Zero
	for i, tip := range config.SuggestedTips {
		if !tip.GreaterThan(previous) {
			return fmt.Errorf("suggested tip at index %d must be positive and increasing", i)
		}
		if tip.GreaterThan(config.MaxTip) {
			return fmt.Errorf("suggested tip %s is above max_tip %s", tip, config.MaxTip)
		}
		previous = tip
	}

	if config.Invoice.Title == "" || config.Invoice.Label == "" {
		return fmt.Errorf("invoice title and label are required")
	}
	if config.Invoice.Description == "" {
		config.Invoice.Description = config.Invoice.Title
	}

	return nil
}
