package grammar

import (
	"strings"
	"unicode"
)

// NormalizeTranscript lower-cases a transcript and collapses whitespace runs
// so token positions are stable regardless of how the speech layer spaced the
// text. Control characters and zero-width glyphs that speech providers emit
// are dropped.
func NormalizeTranscript(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range strings.ToLower(raw) {
		switch {
		case r == '‍' || r == '️' || r == '⃣':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// trimToken strips sentence punctuation that speech-to-text glues onto word
// boundaries. Interior characters are untouched so decimals survive.
func trimToken(tok string) string {
	return strings.Trim(tok, ".,!?;:\"'")
}
