// Package pricing formats monetary amounts for display. Pure functions of
// (amount, currency); no locale state.
package pricing

import (
	"fmt"
	"strings"
)

// currencySymbols maps ISO-4217 codes to display symbols. Unknown currencies
// fall back to "CODE amount".
var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
}

// Format renders an amount like "£12.99" or "£1,249.50".
func Format(amount float64, currency string) string {
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		return fmt.Sprintf("%s %s", strings.ToUpper(currency), groupThousands(amount))
	}
	return symbol + groupThousands(amount)
}

// groupThousands renders a non-negative amount with two decimals and comma
// thousands separators. Negative amounts keep a leading minus sign.
func groupThousands(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	dot := strings.Index(s, ".")
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
