package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundAndFix(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.2345, 1.23},
		{1.236, 1.24},
		{0.125, 0.13},
		{-0.125, -0.13},
		{8.3325, 8.33},
		{100, 100},
		{-1.236, -1.24},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, RoundAndFix(tc.in), "RoundAndFix(%v)", tc.in)
	}
}

func TestPercentCalculator(t *testing.T) {
	assert.Equal(t, 25.0, PercentCalculator(100, 25))
	assert.Equal(t, 8.33, PercentCalculator(33.33, 25))
	assert.Equal(t, 0.0, PercentCalculator(0, 25))
}

func TestMakeDecimal(t *testing.T) {
	assert.Equal(t, "5.00", MakeDecimal(5))
	assert.Equal(t, "8.33", MakeDecimal(8.3325))
	assert.Equal(t, "0.00", MakeDecimal(0))
	assert.Equal(t, "12500.00", MakeDecimal(12500))
}

func TestHashAndValidatePassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	assert.NoError(t, err)
	assert.True(t, ValidatePassword(hash, "s3cret"))
	assert.False(t, ValidatePassword(hash, "wrong"))
}
