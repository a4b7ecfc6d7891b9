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
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeFieldTitle collapses whitespace but preserves case. Answers are
// matched to field definitions by exact equality, so case must survive.
func NormalizeFieldTitle(title string) string {
	return TrimAndNormalize(title)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(TrimAndNormalize(email))
}
