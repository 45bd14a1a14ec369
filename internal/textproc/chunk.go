package textproc

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

// approxWordChars converts an overlap in characters into a word count.
const approxWordChars = 6

// reSentence matches a run ending in . ! or ?, or the unterminated tail of the text.
var reSentence = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)

// Chunker splits long text into overlapping, sentence-aligned chunks.
type Chunker struct {
	MaxChars     int // <= 0 disables chunking
	OverlapChars int
}

// Chunks returns a lazy sequence of chunks. Text that fits in MaxChars is
// returned unchanged as the only chunk. Every other chunk stays within
// MaxChars unless it is a single sentence longer than MaxChars.
// The sequence can be ranged over any number of times.
func (c Chunker) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if c.MaxChars <= 0 || runeLen(text) <= c.MaxChars {
			yield(text)
			return
		}

		overlapWords := c.OverlapChars / approxWordChars
		cur := ""
		rest := text
		for rest != "" {
			loc := reSentence.FindStringIndex(rest)
			if loc == nil {
				break
			}
			sentence := strings.TrimSpace(rest[loc[0]:loc[1]])
			rest = rest[loc[1]:]
			if sentence == "" {
				continue
			}

			if cur == "" {
				cur = sentence
				continue
			}
			if runeLen(cur)+1+runeLen(sentence) <= c.MaxChars {
				cur += " " + sentence
				continue
			}

			if !yield(cur) {
				return
			}
			seed := tailWords(cur, overlapWords, c.MaxChars-runeLen(sentence)-1)
			if seed == "" {
				cur = sentence
			} else {
				cur = seed + " " + sentence
			}
		}
		if cur != "" {
			yield(cur)
		}
	}
}

// Collect drains the sequence into a slice.
func (c Chunker) Collect(text string) []string {
	var out []string
	for chunk := range c.Chunks(text) {
		out = append(out, chunk)
	}
	return out
}

// tailWords returns up to n trailing words of s, dropping leading words until
// the result fits in budget characters.
func tailWords(s string, n, budget int) string {
	if n <= 0 || budget <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	for len(words) > 0 {
		seed := strings.Join(words, " ")
		if runeLen(seed) <= budget {
			return seed
		}
		words = words[1:]
	}
	return ""
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
