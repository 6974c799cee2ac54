// Package indexer splits document text into chunks and feeds files into the corpus.
package indexer

import (
	"iter"
	"unicode/utf8"
)

// DefaultChunkSize is the chunk length in characters used when none is configured.
const DefaultChunkSize = 500

// Chunker splits text into contiguous, non-overlapping chunks of at most size
// characters. Characters are Unicode code points; a chunk never splits one.
type Chunker struct {
	size int
}

// NewChunker creates a chunker. A non-positive size selects DefaultChunkSize.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int {
	return c.size
}

// Chunks yields (ordinal, chunk) pairs lazily. Concatenating the chunks in order
// reproduces text exactly; empty text yields nothing. The sequence can be ranged
// over more than once.
func (c *Chunker) Chunks(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		ordinal, start, runes := 0, 0, 0
		for i := range text {
			if runes == c.size {
				if !yield(ordinal, text[start:i]) {
					return
				}
				ordinal++
				start, runes = i, 0
			}
			runes++
		}
		if start < len(text) {
			yield(ordinal, text[start:])
		}
	}
}

// Split collects Chunks into a slice.
func (c *Chunker) Split(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text)/c.size+1)
	for _, chunk := range c.Chunks(text) {
		out = append(out, chunk)
	}
	return out
}
