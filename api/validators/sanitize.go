package validators

import "strings"

// SanitizeString trims input and caps it at maxLen runes, so a cut never splits a multi-byte
// character (order ids and coupon codes arrive from query strings and forms).
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen])
}
