// Package redact masks personal data in recognized speech before it is logged.
package redact

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// ordered: card numbers would otherwise match the phone pattern.
var rules = []struct {
	pattern *regexp.Regexp
	mask    string
}{
	{emailPattern, "[email]"},
	{cardPattern, "[card]"},
	{phonePattern, "[phone]"},
}

// PII returns text with email addresses, card numbers and phone numbers masked.
func PII(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.mask)
	}
	return text
}

// Value is a log value that renders its text through PII. Wrapping defers the
// regex work until a logger actually formats the field.
type Value string

func (v Value) String() string { return PII(string(v)) }

// MarshalText lets JSON and logfmt formatters render the masked form.
func (v Value) MarshalText() ([]byte, error) { return []byte(PII(string(v))), nil }
