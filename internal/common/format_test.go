package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1500.00 RUB", FormatAmount(decimal.NewFromInt(1500), "RUB"))
	assert.Equal(t, "0.50", FormatAmount(decimal.RequireFromString("0.5"), ""))
}

func TestBoxPrefix(t *testing.T) {
	assert.Equal(t, "└  ", BoxPrefix(true))
	assert.Equal(t, "│  ", BoxPrefix(false))
	assert.Equal(t, "MISMATCH", StatusMark(false))
}
