package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1.005", want: "1.01"},
		{in: "1.004", want: "1"},
		{in: "75", want: "75"},
		{in: "0.125", want: "0.13"},
		{in: "2.675", want: "2.68"},
		{in: "10.999", want: "11"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round2(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "Round2(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, NonNegative(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("19.99"), 3)
	assert.True(t, got.Equal(decimal.RequireFromString("59.97")))
}
