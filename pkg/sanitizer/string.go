package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			// control characters never survive normalization
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

func NormalizeTitle(title string) string {
	return TrimAndNormalize(title)
}

func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}
