// Package chunker splits extracted document text into overlapping passages
// sized for embedding.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode"
)

// ErrInvalidConfig is returned when the chunker options are inconsistent.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Piece is a single passage of the input text. Start and End are rune
// offsets into the original text, with Text == string(runes[Start:End]).
type Piece struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Chunker splits text into pieces of at most maxSize runes, with consecutive
// pieces sharing an overlap-rune tail.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a chunker. overlap must be smaller than maxSize so that every
// piece contributes new content.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, maxSize)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the configured maximum piece size in runes.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns a lazy sequence of pieces. The sequence is finite,
// deterministic, and restartable: ranging over it twice yields the same
// pieces in the same order.
//
// Cuts prefer paragraph boundaries, then sentence ends, then line breaks.
// A fragment with no usable boundary is hard-split at the size limit.
// Whitespace-only pieces are skipped.
func (c *Chunker) Chunks(text string) iter.Seq[Piece] {
	return func(yield func(Piece) bool) {
		runes := []rune(text)
		pos := 0
		for pos < len(runes) {
			end := pos + c.maxSize
			if end >= len(runes) {
				end = len(runes)
			} else if b := c.cutPoint(runes, pos, end); b > 0 {
				end = b
			}

			piece := string(runes[pos:end])
			if strings.TrimSpace(piece) != "" {
				if !yield(Piece{Text: piece, Start: pos, End: end}) {
					return
				}
			}

			if end == len(runes) {
				return
			}
			// Step back by the overlap so the next piece repeats the tail
			// of this one. overlap < maxSize guarantees progress.
			next := end - c.overlap
			if next <= pos {
				next = pos + 1
			}
			pos = next
		}
	}
}

// Split eagerly collects all pieces of text.
func (c *Chunker) Split(text string) []Piece {
	var pieces []Piece
	for p := range c.Chunks(text) {
		pieces = append(pieces, p)
	}
	return pieces
}

// cutPoint finds the best boundary in (pos, limit] to end the current piece,
// or 0 if none is usable. A boundary closer to pos than the overlap is
// rejected, otherwise the overlap would swallow the whole piece.
func (c *Chunker) cutPoint(runes []rune, pos, limit int) int {
	min := pos + c.overlap + 1

	// Paragraph boundary: cut after a blank line.
	for i := limit; i >= min; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}

	// Sentence boundary: terminator followed by whitespace.
	for i := limit; i >= min; i-- {
		if isSentenceEnd(runes[i-1]) && (i == len(runes) || unicode.IsSpace(runes[i])) {
			return i
		}
	}

	// Line break.
	for i := limit; i >= min; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}

	return 0
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
