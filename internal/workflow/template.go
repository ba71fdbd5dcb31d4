package workflow

import (
	"strconv"
	"strings"
)

// ReplaceVariables substitutes every `{name}` token that has an entry in
// vars. Tokens without an entry stay untouched; empty values render as an
// empty string.
func ReplaceVariables(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}
	return template
}

// formatPrice renders a price with thousands separators and no decimals,
// e.g. 2500000 -> "2,500,000".
func formatPrice(v float64) string {
	s := strconv.FormatInt(int64(v+0.5), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
