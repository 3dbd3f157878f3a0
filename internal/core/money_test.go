package core

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.005", true}, // never rounded at parse time
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"20000", "20000", true},
		{"-5", "", false},
		{"+5", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"1 000", "", false},
		{"١٢", "", false}, // non-ASCII digits
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if assert.NoError(t, err, tc.in) {
				assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q expected %s, got %s", tc.in, tc.out, got)
			}
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
		}
	}
}

func TestAmountFromFloat(t *testing.T) {
	d, err := AmountFromFloat(12.5)
	assert.NoError(t, err)
	assert.Equal(t, "12.5", d.String())

	for _, f := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := AmountFromFloat(f)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}
