package classifier

import (
	"unicode/utf8"
)

const truncationMarker = "\n[... Content truncated due to size limits ...]"

// truncateText cuts text to at most maxSize bytes without splitting a rune.
// maxSize <= 0 disables the limit.
func truncateText(text string, maxSize int) (string, bool) {
	if maxSize <= 0 || len(text) <= maxSize {
		return text, false
	}

	truncated := text[:maxSize]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + truncationMarker, true
}
