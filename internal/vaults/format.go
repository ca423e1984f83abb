package vaults

import (
	"strconv"
	"strings"
)

// FormatAmount renders a token amount with two decimals and comma
// grouping: 1234567.891 -> "1,234,567.89". Shared by the summary and
// rebalance message formatters.
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}
	var out []byte
	for i, d := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}
