package domain

import "unicode/utf8"

// Truncate shortens value to at most limit runes, marking the cut with "...".
// Cuts always land on rune boundaries so log attributes stay valid UTF-8.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
