// Package memory is a brute-force cosine similarity vector index kept in process memory.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/vectorstore"
)

type record struct {
	chunk entity.Chunk
	seq   int64
}

// Index keeps chunk records and their vectors in separate maps keyed by chunk id.
// Readers share the lock, a document's chunks are inserted under one write lock.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	records    map[string]*record
	vectors    map[string][]float32
	byDocument map[string][]string
	seq        int64
}

func New(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		records:    make(map[string]*record),
		vectors:    make(map[string][]float32),
		byDocument: make(map[string][]string),
	}
}

// Insert adds every chunk or none of them.
func (ix *Index) Insert(ctx context.Context, chunks []entity.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if c.ID == "" || c.DocumentID == "" {
			return fmt.Errorf("%w: chunk id and document id are required", entity.ErrInvalidParameter)
		}
		if len(c.Vector) != ix.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", entity.ErrDimensionMismatch, c.ID, len(c.Vector), ix.dimensions)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk %s", entity.ErrInvalidParameter, c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, c := range chunks {
		if _, ok := ix.records[c.ID]; ok {
			return fmt.Errorf("%w: chunk %s already indexed", entity.ErrDocumentExists, c.ID)
		}
	}

	for _, c := range chunks {
		ix.seq++
		vector := slices.Clone(c.Vector)
		c.Vector = nil
		ix.records[c.ID] = &record{chunk: c, seq: ix.seq}
		ix.vectors[c.ID] = vector
		ix.byDocument[c.DocumentID] = append(ix.byDocument[c.DocumentID], c.ID)
	}

	return nil
}

// DeleteDocument removes every chunk and vector of the document, including
// vectors whose chunk record has gone missing.
func (ix *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	deleted := 0
	for _, id := range ix.byDocument[documentID] {
		if _, ok := ix.records[id]; ok {
			deleted++
		}
		delete(ix.records, id)
		delete(ix.vectors, id)
	}
	delete(ix.byDocument, documentID)

	for id, r := range ix.records {
		if r.chunk.DocumentID == documentID {
			delete(ix.records, id)
			delete(ix.vectors, id)
			deleted++
		}
	}

	return deleted, nil
}

func (ix *Index) Search(ctx context.Context, query []float32, topK int, filter entity.SearchFilter) ([]entity.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", entity.ErrDimensionMismatch, len(query), ix.dimensions)
	}
	if topK <= 0 {
		return []entity.VectorHit{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]entity.VectorHit, 0, len(ix.records))
	missing := 0
	for id, r := range ix.records {
		if filter.Category != "" && r.chunk.Metadata.Category != filter.Category {
			continue
		}
		vector, ok := ix.vectors[id]
		if !ok || len(vector) != ix.dimensions {
			vectorstore.ReportCorruption(ctx, id, "chunk without a usable vector")
			missing++
			continue
		}
		hits = append(hits, entity.VectorHit{
			ChunkID:    id,
			DocumentID: r.chunk.DocumentID,
			Text:       r.chunk.Text,
			Meta:       r.chunk.Metadata,
			Similarity: Cosine(query, vector),
			Seq:        r.seq,
		})
	}

	if missing > 0 || len(ix.vectors) != len(ix.records) {
		for id := range ix.vectors {
			if _, ok := ix.records[id]; !ok {
				vectorstore.ReportCorruption(ctx, id, "vector without a chunk")
			}
		}
	}

	slices.SortFunc(hits, func(a, b entity.VectorHit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (ix *Index) Stats(ctx context.Context) (*entity.VectorStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	documents := make(map[string]struct{})
	for _, r := range ix.records {
		documents[r.chunk.DocumentID] = struct{}{}
	}
	return &entity.VectorStats{
		ChunkCount:    len(ix.records),
		DocumentCount: len(documents),
	}, nil
}

func (ix *Index) Dimensions() int {
	return ix.dimensions
}

func (ix *Index) Close() error {
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
