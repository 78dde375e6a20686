package utils

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders a money amount with three decimals and its currency code,
// e.g. 25.5 SAR -> "25.500 SAR".
func FormatAmount(amount decimal.Decimal, currency string) string {
	s := amount.StringFixed(3)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
