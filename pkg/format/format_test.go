package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "€0.00"},
		{12.345, "€12.35"},
		{0.004, "€0.00"},
		{1234.5, "€1234.50"},
		{-3.1, "-€3.10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Currency(tt.in), "%v", tt.in)
	}
}

func TestEnergy(t *testing.T) {
	assert.Equal(t, "0.0 kWh", Energy(0))
	assert.Equal(t, "12.3 kWh", Energy(12.34))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "100.0%", Percent(100))
	assert.Equal(t, "42.4%", Percent(42.44))
}
