package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksShortTextUntouched(t *testing.T) {
	chunks := splitChunks("привет", 100)
	assert.Equal(t, []string{"привет"}, chunks)
}

func TestSplitChunksParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("a", 60)
	b := strings.Repeat("b", 60)
	c := strings.Repeat("c", 30)
	text := a + "\n\n" + b + "\n\n" + c

	chunks := splitChunks(text, 100)

	require.Len(t, chunks, 2)
	assert.Equal(t, a, chunks[0])
	assert.Equal(t, b+"\n\n"+c, chunks[1])
}

func TestSplitChunksHardCutKeepsRunesIntact(t *testing.T) {
	// Cyrillic is two bytes per rune, so a byte-offset cut can land
	// mid-rune without the boundary walk-back.
	text := strings.Repeat("я", 200)

	chunks := splitChunks(text, 101)

	require.Greater(t, len(chunks), 1)
	total := ""
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, len(chunk), 101)
		total += chunk
	}
	assert.Equal(t, text, total)
}

func TestSplitChunksMixedParagraphSizes(t *testing.T) {
	big := strings.Repeat("x", 250)
	text := "intro\n\n" + big + "\n\nfooter"

	chunks := splitChunks(text, 100)

	joined := strings.Join(chunks, "\n\n")
	assert.Contains(t, joined, "intro")
	assert.Contains(t, joined, "footer")
	assert.Equal(t, 250, strings.Count(joined, "x"))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100)
	}
}
