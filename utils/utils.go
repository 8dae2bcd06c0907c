package utils

import (
	// Go Internal Packages
	"math"
	"strings"

	// External Packages
	"github.com/shopspring/decimal"
)

// FormatAmount renders a balance rounded to whole units with a space between
// thousands, e.g. -12 345 $.
// Values that are not finite render as "-- $".
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-- $"
	}
	s := decimal.NewFromFloat(v).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if s == "0" {
		sign = ""
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" $")
	return b.String()
}

// ParseAmount parses operator input such as "12.50". Amounts must be
// non-negative and fit a tag balance.
func ParseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errNegativeAmount
	}
	f, _ := d.Float64()
	return f, nil
}
