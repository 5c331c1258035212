// Package indexer builds the retrieval corpus: it chunks initiative text and
// attachment content, embeds the chunks, and writes them to storage.
package indexer

import "strings"

const (
	// softCutMargin keeps the boundary search away from the hard window end
	// so a cut point is never the very last character of the window.
	softCutMargin = 20
	// minChunkLen is the smallest chunk a soft cut may produce. Boundaries
	// closer to the window start than this are ignored.
	minChunkLen = 200
)

// Chunker splits normalized text into overlapping character windows, cutting
// at the last space or period before the window end when one is available.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, both
// in characters. Overlap is clamped below size so the window always advances.
func NewChunker(size, overlap int) *Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into chunks of at most the window size. All whitespace is
// collapsed to single spaces first, so windowing and soft cuts see one flat
// run of words regardless of how the source text broke its lines. Every chunk
// after the first starts overlap characters before the previous cut, so
// neighboring chunks share context. Empty input yields nil.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	n := len(runes)
	if n == 0 {
		return nil
	}
	var chunks []string
	for i := 0; i < n; {
		end := i + c.size
		if end > n {
			end = n
		}
		cut := end
		if end < n {
			for j := end - softCutMargin - 1; j > i+minChunkLen; j-- {
				if runes[j] == ' ' || runes[j] == '.' {
					cut = j + 1
					break
				}
			}
		}
		piece := strings.TrimSpace(string(runes[i:cut]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if cut >= n {
			break
		}
		next := cut - c.overlap
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}
