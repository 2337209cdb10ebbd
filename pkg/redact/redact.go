package redact

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
	// Recognizers spell digits out, so a long run of number words is treated like a number.
	spokenDigitsRe = regexp.MustCompile(`(?i)\b(?:(?:zero|oh|one|two|three|four|five|six|seven|eight|nine)\s+){6,}(?:zero|oh|one|two|three|four|five|six|seven|eight|nine)\b`)
)

// Redactor masks personal data in transcripts before they reach logs or storage.
// A nil or disabled Redactor returns text unchanged.
type Redactor struct {
	enabled bool
}

func New(enabled bool) *Redactor {
	return &Redactor{enabled: enabled}
}

func (r *Redactor) Enabled() bool {
	return r != nil && r.enabled
}

// Text redacts emails, phone numbers and spoken digit sequences.
func (r *Redactor) Text(in string) string {
	if !r.Enabled() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	out = spokenDigitsRe.ReplaceAllString(out, "[REDACTED_NUMBER]")
	return out
}
