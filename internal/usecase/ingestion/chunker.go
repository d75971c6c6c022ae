package ingestion

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order when looking for a natural break near the
// end of a window. Paragraph breaks beat line breaks beat sentence ends
// beat plain spaces.
var separators = []string{"\n\n", "\n", ". ", " "}

// SplitText slices text into overlapping chunks of roughly size bytes.
// Consecutive chunks share overlap bytes so that a sentence straddling a
// boundary stays retrievable from at least one chunk. When a separator
// occurs in the last fifth of a window the cut moves back to it, otherwise
// the window is cut at the nearest rune boundary.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			if chunk := strings.TrimSpace(text[start:]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := boundary(text, start, end)
		if chunk := strings.TrimSpace(text[start:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		for next > 0 && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func boundary(text string, start, end int) int {
	window := text[start:end]
	threshold := len(window) * 4 / 5
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= threshold {
			return start + idx + len(sep)
		}
	}
	cut := end
	for cut > start && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
