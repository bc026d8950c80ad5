// Package format renders amounts the way the dashboard displays them.
package format

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency formats a EUR amount with two decimals, for example "€12.34".
// Negative amounts keep their sign in front of the symbol.
func Currency(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	if d.IsNegative() {
		return "-€" + d.Neg().StringFixed(2)
	}
	return "€" + d.StringFixed(2)
}

// Energy formats kWh with one decimal.
func Energy(kwh float64) string {
	return fmt.Sprintf("%.1f kWh", kwh)
}

// Percent formats a 0-100 percentage with one decimal.
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}
