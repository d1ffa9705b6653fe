package dashboard

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber prints value with a fixed number of decimals. Missing values
// print as "---" (no decimals) or "-." followed by one dash per decimal.
func FormatNumber(value *float64, precision int) string {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		if precision > 0 {
			return "-." + strings.Repeat("-", precision)
		}
		return "---"
	}
	return decimal.NewFromFloat(*value).StringFixed(int32(precision))
}

// FormatValue is FormatNumber plus a unit suffix
func FormatValue(value *float64, suffix string, precision int) string {
	return FormatNumber(value, precision) + suffix
}
