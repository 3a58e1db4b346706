package models

import "strings"

// CanonicalCode normalizes a ticker code to its canonical identity form.
// Position identity comparisons must always go through this function: upstream
// proposals and market data re-stringify codes with stray whitespace, casing
// and market suffixes (2330.TW vs 2330), and those must all compare equal.
func CanonicalCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	c = strings.TrimSuffix(c, ".TWO")
	c = strings.TrimSuffix(c, ".TW")
	return c
}
