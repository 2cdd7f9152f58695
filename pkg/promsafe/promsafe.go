// Package promsafe scrubs strings for use as Prometheus label values in a
// hand-rendered text exposition.
package promsafe

import "strings"

// LabelValue makes s safe to embed between double quotes in the exposition.
// Embedded quote characters are stripped (not escaped) to match the wire
// contract; backslashes and newlines are escaped per the text format.
func LabelValue(s string) string {
	if !needsScrub(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			// dropped
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// dropped
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func needsScrub(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\', '\n', '\r':
			return true
		}
	}
	return false
}
