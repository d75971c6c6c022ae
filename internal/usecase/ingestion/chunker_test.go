package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("short document", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short document", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Nil(t, SplitText("", 1000, 200))
	assert.Nil(t, SplitText("   \n\t  ", 1000, 200))
}

func TestSplitTextOverlapWindows(t *testing.T) {
	text := strings.Repeat("a", 2400)

	chunks := SplitText(text, 1000, 200)
	require.Len(t, chunks, 3)

	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 800)

	// Consecutive chunks share the overlap region.
	assert.Equal(t, chunks[0][800:], chunks[1][:200])
	assert.Equal(t, chunks[1][800:], chunks[2][:200])
}

func TestSplitTextPrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("x", 900) + "\n\n" + strings.Repeat("y", 900)

	chunks := SplitText(text, 1000, 200)
	require.NotEmpty(t, chunks)

	// The first window ends at the paragraph break, not mid-paragraph.
	assert.Equal(t, strings.Repeat("x", 900), chunks[0])
}

func TestSplitTextCoversWholeInput(t *testing.T) {
	sentence := "Objection handling starts with listening to the customer. "
	text := strings.TrimSpace(strings.Repeat(sentence, 80))

	chunks := SplitText(text, 500, 100)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 500, "chunk %d too long", i)
		assert.NotEmpty(t, chunk)
	}

	// The final chunk reaches the end of the input.
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplitTextMultiByteRuneBoundaries(t *testing.T) {
	// Separator-free CJK text forces raw window cuts. Both the end of a
	// window and the overlapped start of the next one must land on rune
	// boundaries or the chunks are not valid UTF-8.
	text := strings.Repeat("価格交渉の進め方と保証延長の利点説明", 60)

	chunks := SplitText(text, 1000, 200)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
	}
}

func TestSplitTextDegenerateOverlap(t *testing.T) {
	// An overlap at or above the chunk size would stall the window, so it
	// is ignored.
	chunks := SplitText(strings.Repeat("a", 250), 100, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
}
