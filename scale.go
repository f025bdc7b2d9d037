package fb

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatScaled renders an unscaled integer (decimal digits with an optional
// leading '-') as a decimal string with the point placed digits places from the
// right, padding with leading zeros: ("-5", 2) gives "-0.05".
func formatScaled(unscaled string, digits int) string {
	if digits <= 0 {
		return unscaled
	}
	neg := strings.HasPrefix(unscaled, "-")
	mag := strings.TrimPrefix(unscaled, "-")
	if len(mag) <= digits {
		mag = strings.Repeat("0", digits-len(mag)+1) + mag
	}
	point := len(mag) - digits
	var sb strings.Builder
	sb.Grow(len(mag) + 2)
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(mag[:point])
	sb.WriteByte('.')
	sb.WriteString(mag[point:])
	return sb.String()
}

// scaledDecimal turns an unscaled integer string into the exact decimal it
// represents for a column of the given (negative) scale.
func scaledDecimal(unscaled string, scale int16) (decimal.Decimal, error) {
	return decimal.NewFromString(formatScaled(unscaled, int(-scale)))
}
