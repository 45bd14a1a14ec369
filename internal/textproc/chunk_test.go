package textproc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "The bidder shall submit document number " + strings.Repeat("x", i%7) + " with the bid."
	}
	return strings.Join(parts, " ")
}

func TestChunksShortTextIsNoop(t *testing.T) {
	c := Chunker{MaxChars: 100, OverlapChars: 30}
	for _, text := range []string{"", "One sentence.", "No terminal punctuation", strings.Repeat("a", 100)} {
		assert.Equal(t, []string{text}, c.Collect(text))
	}
}

func TestChunksDisabled(t *testing.T) {
	text := sentences(50)
	assert.Equal(t, []string{text}, Chunker{}.Collect(text))
}

func TestChunksRespectMaxSize(t *testing.T) {
	text := sentences(200)
	for _, max := range []int{80, 120, 500, 2000} {
		c := Chunker{MaxChars: max, OverlapChars: 60}
		chunks := c.Collect(text)
		require.Greater(t, len(chunks), 1, "max=%d", max)
		for _, ch := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(ch), max, "max=%d chunk=%q", max, ch)
			assert.NotEmpty(t, ch)
		}
	}
}

func TestChunksCoverAllSentences(t *testing.T) {
	text := "Alpha one. Bravo two! Charlie three? Delta four. Echo five."
	c := Chunker{MaxChars: 25, OverlapChars: 0}
	chunks := c.Collect(text)
	assert.Equal(t, []string{"Alpha one. Bravo two!", "Charlie three?", "Delta four. Echo five."}, chunks)
}

func TestChunksSeedOverlap(t *testing.T) {
	text := "Alpha bravo charlie delta. Echo foxtrot golf hotel. India juliet kilo lima."
	// 12 overlap chars -> 2 words carried into the next chunk
	c := Chunker{MaxChars: 40, OverlapChars: 12}
	chunks := c.Collect(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Alpha bravo charlie delta.", chunks[0])
	assert.Equal(t, "charlie delta. Echo foxtrot golf hotel.", chunks[1])
	assert.Equal(t, "golf hotel. India juliet kilo lima.", chunks[2])
}

func TestChunksOversizedSentenceStandsAlone(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	text := "Short intro. " + long + " Short outro."
	c := Chunker{MaxChars: 50, OverlapChars: 12}
	chunks := c.Collect(text)

	oversized := 0
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch) > 50 {
			oversized++
			assert.Equal(t, strings.TrimSpace(long), ch)
		}
	}
	assert.Equal(t, 1, oversized)
	assert.Equal(t, "Short intro.", chunks[0])
}

func TestChunksTrailingFragmentKept(t *testing.T) {
	text := "First sentence here. Second sentence here. trailing words without stop"
	c := Chunker{MaxChars: 30, OverlapChars: 0}
	chunks := c.Collect(text)
	assert.Equal(t, "trailing words without stop", chunks[len(chunks)-1])
}

func TestChunksRestartable(t *testing.T) {
	c := Chunker{MaxChars: 100, OverlapChars: 30}
	seq := c.Chunks(sentences(40))

	var first, second []string
	for ch := range seq {
		first = append(first, ch)
	}
	for ch := range seq {
		second = append(second, ch)
	}
	assert.Equal(t, first, second)
	assert.Greater(t, len(first), 1)
}

func TestChunksStopsEarly(t *testing.T) {
	c := Chunker{MaxChars: 60, OverlapChars: 0}
	n := 0
	for range c.Chunks(sentences(100)) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestChunksMultibyteLength(t *testing.T) {
	text := strings.Repeat("é", 10) + "."
	c := Chunker{MaxChars: 11}
	assert.Equal(t, []string{text}, c.Collect(text))
}
