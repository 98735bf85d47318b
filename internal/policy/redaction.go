package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	// Spoken PINs arrive inside the command text itself and must never reach
	// the archive.
	pinPattern = regexp.MustCompile(`(?i)\bpin is\s+\d+`)
)

// RedactSensitive masks spoken PINs and common high-risk PII patterns before
// a transcript is archived.
func RedactSensitive(input string) (redacted string, changed bool) {
	out := input

	next := pinPattern.ReplaceAllString(out, "[REDACTED_PIN]")
	changed = changed || next != out
	out = next

	next = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified
	// as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
