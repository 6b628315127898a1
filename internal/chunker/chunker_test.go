package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesbot/internal/pdfdoc"
)

func rulebookPages(texts ...string) []pdfdoc.Page {
	pages := make([]pdfdoc.Page, len(texts))
	for i, text := range texts {
		pages[i] = pdfdoc.Page{Number: i, Text: text, Source: "rules.pdf"}
	}
	return pages
}

func TestChunkPagesIgnoreAndSetup(t *testing.T) {
	pages := rulebookPages(
		"page one content",
		"page two content",
		"page three content",
		"page four setup content",
		"page five content",
	)

	c := New(DefaultChunkSize, DefaultChunkOverlap)
	sections := c.ChunkPages(pages, []int{2}, []int{4})

	require.NotEmpty(t, sections)

	// The synthetic setup section comes first and carries page four's text.
	setup := sections[0]
	assert.True(t, setup.SetupPage)
	assert.True(t, strings.HasPrefix(setup.Content, "Start of game setup instructions:\n\n"))
	assert.Contains(t, setup.Content, "page four setup content")
	assert.Equal(t, 3, setup.Page)

	// No section is sourced from the ignored page two; pages 1, 3 and 5
	// survive as ordinary content.
	var seenPages []int
	for _, s := range sections[1:] {
		assert.False(t, s.SetupPage)
		assert.NotContains(t, s.Content, "page two content")
		seenPages = append(seenPages, s.Page)
	}
	assert.Equal(t, []int{0, 2, 4}, seenPages)
}

func TestChunkPagesSetupTakesPrecedenceOverIgnore(t *testing.T) {
	pages := rulebookPages("intro", "how to set up the game")

	c := New(DefaultChunkSize, DefaultChunkOverlap)
	sections := c.ChunkPages(pages, []int{2}, []int{2})

	require.Len(t, sections, 2)
	assert.True(t, sections[0].SetupPage)
	assert.Contains(t, sections[0].Content, "how to set up the game")
	assert.Equal(t, "intro", sections[1].Content)
}

func TestChunkPagesSetupMergesMultiplePagesInOrder(t *testing.T) {
	pages := rulebookPages("one", "two", "three")

	c := New(DefaultChunkSize, DefaultChunkOverlap)
	sections := c.ChunkPages(pages, nil, []int{1, 3})

	require.Len(t, sections, 2)
	setup := sections[0]
	assert.True(t, setup.SetupPage)
	assert.Equal(t, "Start of game setup instructions:\n\none\nthree", setup.Content)
	assert.Equal(t, 0, setup.Page)
	assert.Equal(t, "two", sections[1].Content)
}

func TestChunkPagesEmptyAfterFiltering(t *testing.T) {
	pages := rulebookPages("only page")

	c := New(DefaultChunkSize, DefaultChunkOverlap)
	sections := c.ChunkPages(pages, []int{1}, nil)

	assert.Empty(t, sections)
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	c := New(100, 20)
	chunks := c.Split("a short rule statement")
	assert.Equal(t, []string{"a short rule statement"}, chunks)
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	var words []string
	for i := 0; i < 60; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	text := strings.Join(words, " ")

	c := New(20, 8)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 20)
	}

	// Every word survives somewhere.
	joined := strings.Join(chunks, " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}

	// Adjacent chunks share a boundary: each chunk starts with a suffix of
	// its predecessor.
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, suffixPrefixOverlap(chunks[i-1], chunks[i]), 3,
			"chunks %d and %d do not overlap", i-1, i)
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 40)
	text := para + "\n\n" + para + "\n\n" + para

	c := New(50, 10)
	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Equal(t, para, chunk)
	}
}

func TestSplitHardCutsUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 95)

	c := New(40, 10)
	chunks := c.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 40)
	}
	assert.Equal(t, text[:40], chunks[0])
	// Overlapping stride: the second chunk starts inside the first.
	assert.Equal(t, text[30:70], chunks[1])
}

func suffixPrefixOverlap(a, b string) int {
	maxLen := len(a)
	if len(b) < maxLen {
		maxLen = len(b)
	}
	for n := maxLen; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}
