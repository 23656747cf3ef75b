package chunker

import (
	"iter"
	"unicode/utf8"
)

const (
	// DefaultSize is the default maximum chunk length in code points
	DefaultSize = 2000

	// DefaultOverlap is the default number of code points shared by neighbours
	DefaultOverlap = 200
)

// Chunk is one window of a longer text
type Chunk struct {
	Index int
	Text  string
	// Start and End are code point offsets into the source text
	Start int
	End   int
}

// Chunker splits long text into overlapping windows
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. A non-positive size selects the defaults and an
// overlap that is not smaller than size is reduced to size/4.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size, overlap = DefaultSize, DefaultOverlap
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the maximum chunk length in code points
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the shared length between neighbouring chunks
func (c *Chunker) Overlap() int {
	return c.overlap
}

// NeedsSplit reports whether text is longer than one chunk
func (c *Chunker) NeedsSplit(text string) bool {
	return utf8.RuneCountInString(text) > c.size
}

// Chunks yields the windows of text lazily. Each range over the returned
// sequence starts from the beginning. Text that fits in one chunk yields
// exactly one chunk equal to the input.
func (c *Chunker) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		runes := []rune(text)
		n := len(runes)
		if n <= c.size {
			yield(Chunk{Index: 0, Text: text, Start: 0, End: n})
			return
		}

		step := c.size - c.overlap
		for i, start := 0, 0; start < n; i, start = i+1, start+step {
			end := min(start+c.size, n)
			if !yield(Chunk{Index: i, Text: string(runes[start:end]), Start: start, End: end}) {
				return
			}
			if end == n {
				return
			}
		}
	}
}

// Split collects every chunk of text
func (c *Chunker) Split(text string) []Chunk {
	chunks := make([]Chunk, 0, c.estimate(text))
	for ch := range c.Chunks(text) {
		chunks = append(chunks, ch)
	}
	return chunks
}

func (c *Chunker) estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n <= c.size {
		return 1
	}
	return (n-c.overlap)/(c.size-c.overlap) + 1
}
