// Package chunk splits documents into overlapping word windows.
//
// Chunks are the unit of embedding and storage: a document is split on
// whitespace and re-joined into windows of Size words, each window
// starting Size-Overlap words after the previous one. Overlap keeps
// sentences that straddle a boundary retrievable from both sides.
package chunk

import "strings"

const (
	// DefaultSize is the default chunk window size in words.
	DefaultSize = 512

	// DefaultOverlap is the default number of words shared between
	// adjacent chunks.
	DefaultOverlap = 50
)

// Splitter produces overlapping word-window chunks from raw text.
// The zero value is not usable; construct with New.
type Splitter struct {
	size    int
	overlap int
}

// New creates a Splitter with the given window size and overlap, both in
// words. Non-positive size falls back to DefaultSize; a negative overlap
// is treated as zero. An overlap at or above the window size would make
// the stride non-positive, so the stride is clamped to at least one word.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{size: size, overlap: overlap}
}

// Size returns the configured window size in words.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap in words.
func (s *Splitter) Overlap() int { return s.overlap }

// Split breaks text into overlapping chunks of up to Size words each,
// re-joined with single spaces. Adjacent chunks share exactly Overlap
// words; the final chunk may be shorter. The sequence always covers
// every word of the input exactly once per window position.
//
// Empty or all-whitespace input yields a single empty chunk, so every
// document produces at least one chunk.
func (s *Splitter) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	stride := s.size - s.overlap
	if stride < 1 {
		stride = 1
	}

	var chunks []string
	for start := 0; ; start += stride {
		end := start + s.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			return chunks
		}
	}
}
