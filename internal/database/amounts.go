package database

import (
	"database/sql"
	"fmt"

	"campus-wallet-go/internal/models"
	"campus-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

// amountScale is the number of fractional digits kept at rest.
const amountScale = models.MaxMinorUnitDigits

// toMinor converts an amount to integer minor units.
func toMinor(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Truncate(amountScale)) {
		return 0, fmt.Errorf("%w: %s has more than %d fractional digits", store.ErrInvalidAmount, amount, amountScale)
	}
	minor := amount.Shift(amountScale)
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s is out of range", store.ErrInvalidAmount, amount)
	}
	return minor.IntPart(), nil
}

// positiveMinor is toMinor for amounts that must be strictly positive.
func positiveMinor(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", store.ErrInvalidAmount, amount)
	}
	return toMinor(amount)
}

func fromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -amountScale)
}

func nullableId(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
