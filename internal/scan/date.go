package scan

import (
	"regexp"
	"strings"
)

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	plainDateRe = regexp.MustCompile(`^\d{8}$`)
)

// NormalizeDate converts the date formats envelopes actually carry into
// YYYY-MM-DD. Anything unrecognized passes through unchanged so the stored
// value still shows what was printed on the envelope.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDateRe.MatchString(s) {
		return s
	}

	// YYYY.MM.DD
	s = strings.ReplaceAll(s, ".", "-")
	if isoDateRe.MatchString(s) {
		return s
	}

	// YYYYMMDD
	if plainDateRe.MatchString(s) {
		return s[:4] + "-" + s[4:6] + "-" + s[6:]
	}

	return s
}
