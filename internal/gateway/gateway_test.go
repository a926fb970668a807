package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		minor  int64
	}{
		{"67.20", 6720},
		{"100", 10000},
		{"0.01", 1},
		{"19.995", 2000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.minor, ToMinorUnits(decimal.RequireFromString(tt.amount)), tt.amount)
	}

	assert.Equal(t, "67.2", FromMinorUnits(6720).String())
	assert.True(t, FromMinorUnits(10000).Equal(decimal.NewFromInt(100)))
}
