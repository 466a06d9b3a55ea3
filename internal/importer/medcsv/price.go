package medcsv

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parsePrice reads "25.50", "25,50", "1.234,56" and "1,234.56". The right-most
// separator is the decimal one when it is followed by at most two digits.
func parsePrice(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), " ", "")

	dot := strings.LastIndex(clean, ".")
	comma := strings.LastIndex(clean, ",")

	if comma > dot && len(clean)-comma-1 <= 2 {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	} else {
		clean = strings.ReplaceAll(clean, ",", "")
	}

	return decimal.NewFromString(clean)
}
