package escalation

import "strings"

// DefaultExcerptLength bounds excerpts when no length is configured
const DefaultExcerptLength = 80

const ellipsis = "…"

// Excerpt collapses whitespace and cuts text to at most limit runes,
// ending in an ellipsis when something was dropped
func Excerpt(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLength
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit == 1 {
		return ellipsis
	}
	return strings.TrimRight(string(runes[:limit-1]), " ") + ellipsis
}
