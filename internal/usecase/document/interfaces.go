package document

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Insert(ctx context.Context, chunks []entity.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (*entity.VectorStats, error)
}

type Chunker interface {
	Chunks(documentID, text string, meta entity.ChunkMeta) []entity.Chunk
}
