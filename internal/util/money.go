package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingSymbol = regexp.MustCompile(`^[^\d]+`)
	// Longest leading numeric token after the currency symbol; trailing
	// text (another cell's rendering, a unit) is ignored the way a
	// lenient decimal parse would.
	leadingNumber = regexp.MustCompile(`^(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?)`)

	thousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	thousandsDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
)

// ParseCurrencyMilli parses a rendered money cell ("$1,234.56",
// "EUR 12,34") into milliunits. The leading currency symbol set varies
// with the email's locale, so anything before the first digit is
// dropped rather than matched against a symbol table.
func ParseCurrencyMilli(text string) (int64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(text, " ", " "))
	if s == "" {
		return 0, false
	}
	s = leadingSymbol.ReplaceAllString(s, "")

	token := leadingNumber.FindString(s)
	if token == "" {
		return 0, false
	}

	switch {
	case thousandsComma.MatchString(token):
		token = strings.ReplaceAll(token, ",", "")
	case thousandsDot.MatchString(token):
		token = strings.ReplaceAll(token, ".", "")
		token = strings.ReplaceAll(token, ",", ".")
	case strings.Contains(token, ","):
		token = strings.ReplaceAll(token, ",", ".")
	}

	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}

	// Round through cents so 19.99 lands on 19990 exactly.
	cents := int64(parsed*100 + 0.5)
	return cents * 10, true
}
