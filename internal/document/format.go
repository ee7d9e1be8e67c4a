package document

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the fixed number of decimals for every monetary figure.
const MoneyPlaces = 4

// FormatAmount renders a monetary value with exactly four decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// Filename is the download name for an invoice document. Downstream tooling parses it,
// so the shape must not change.
func Filename(product, month, displayName string) string {
	return fmt.Sprintf("%s_Invoice_%s_%s.pdf", product, month, displayName)
}

// formatQuantity prints a usage figure with the precision it arrived with.
func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
