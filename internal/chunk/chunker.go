// Package chunk splits document text into overlapping windows.
package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned for a non-positive size or an overlap that does not fit.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunk is one window of document text. Overlap counts the leading runes
// repeated from the previous chunk.
type Chunk struct {
	Index   int
	Text    string
	Overlap int
}

// Split cuts text into windows of at most size runes, each starting
// size-overlap runes after the previous one. It stops after the first window
// that reaches the end of the text, so the chunk count is
// ceil((len-overlap)/(size-overlap)) for text longer than overlap.
// Empty text yields no chunks.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]Chunk, 0, Count(len(runes), size, overlap))
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		c := Chunk{Index: len(chunks), Text: string(runes[start:end])}
		if c.Index > 0 {
			c.Overlap = overlap
		}
		chunks = append(chunks, c)
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Count returns how many chunks Split produces for a text of n runes.
func Count(n, size, overlap int) int {
	if n <= 0 || size <= 0 || overlap >= size {
		return 0
	}
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}

// Join reverses Split by dropping each chunk's overlap prefix.
func Join(chunks []Chunk) string {
	var out []rune
	for _, c := range chunks {
		r := []rune(c.Text)
		out = append(out, r[min(c.Overlap, len(r)):]...)
	}
	return string(out)
}
