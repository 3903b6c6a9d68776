// Package chunker splits document text into overlapping fixed-size spans.
package chunker

import (
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of overlapping characters.
	DefaultChunkOverlap = 200
)

// Span is a contiguous slice of the source text. Offsets count characters
// (Unicode code points), End is exclusive.
type Span struct {
	Text  string
	Start int
	End   int
}

type Chunker struct {
	size    int
	overlap int
}

// New validates the sizing once so a misconfigured process fails at startup.
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entity.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", entity.ErrConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into spans of at most Size characters, each starting
// Size-Overlap characters after the previous one. The last span ends at the
// end of the text.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return []Span{}
	}

	step := c.size - c.overlap
	spans := make([]Span, 0, n/step+1)

	for start := 0; ; start += step {
		end := min(start+c.size, n)
		spans = append(spans, Span{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == n {
			break
		}
	}

	return spans
}

// Split is a one-shot helper for callers that do not keep a Chunker around.
func Split(text string, size, overlap int) ([]Span, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Chunks turns the spans of a document into index-ready chunks without vectors.
func (c *Chunker) Chunks(documentID, text string, meta entity.ChunkMeta) []entity.Chunk {
	spans := c.Split(text)
	chunks := make([]entity.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, entity.Chunk{
			ID:          entity.ChunkID(documentID, i),
			DocumentID:  documentID,
			Position:    i,
			Text:        s.Text,
			StartOffset: s.Start,
			EndOffset:   s.End,
			Metadata:    meta,
		})
	}
	return chunks
}
