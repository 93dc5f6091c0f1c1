package synth

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern       = regexp.MustCompile(`https?://\S+`)
	markupTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// Speakable strips what a voice would read out literally: links, markup, emoji and
// control characters. Sentence punctuation of every script is kept since the voices
// use it for pacing.
func Speakable(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = markupTagPattern.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sk, unicode.Cf):
			// emoji, modifiers, zero-width joiners
		case strings.ContainsRune("*_#~|\\", r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}
