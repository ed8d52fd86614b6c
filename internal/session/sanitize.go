package session

import "strings"

// sanitizeMessage trims surrounding whitespace, strips control characters
// other than newline and tab, and caps length. Message text is rendered as
// plain text, never interpreted as HTML, so no markup filtering happens
// here.
func sanitizeMessage(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	text = b.String()

	if maxLen > 0 && len(text) > maxLen {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen])
		}
	}
	return text
}
