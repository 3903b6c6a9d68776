// Package pgvector stores chunk vectors in PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

const uniqueViolation = "23505"

// RegisterTypes teaches a pgx connection the vector type. Use it as pgxpool AfterConnect.
func RegisterTypes(ctx context.Context, conn *pgx.Conn) error {
	return pgxvec.RegisterTypes(ctx, conn)
}

// Index implements the vector index on the chunks table. Ordering on equal
// distance falls back to the seq column, which is assigned at insert time.
type Index struct {
	db         *pgxpool.Pool
	dimensions int
}

func New(db *pgxpool.Pool, dimensions int) *Index {
	return &Index{db: db, dimensions: dimensions}
}

func (ix *Index) Insert(ctx context.Context, chunks []entity.Chunk) error {
	for _, c := range chunks {
		if len(c.Vector) != ix.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", entity.ErrDimensionMismatch, c.ID, len(c.Vector), ix.dimensions)
		}
	}

	tx, err := ix.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin insert: %w", entity.ErrVectorIndexUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, position, text, start_offset, end_offset, title, category, filename, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID, c.DocumentID, c.Position, c.Text, c.StartOffset, c.EndOffset,
			c.Metadata.Title, c.Metadata.Category, c.Metadata.Filename, pgv.NewVector(c.Vector),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", entity.ErrDocumentExists, pgErr.Detail)
			}
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (ix *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := ix.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete chunks: %w", entity.ErrVectorIndexUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (ix *Index) Search(ctx context.Context, query []float32, topK int, filter entity.SearchFilter) ([]entity.VectorHit, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", entity.ErrDimensionMismatch, len(query), ix.dimensions)
	}
	if topK <= 0 {
		return []entity.VectorHit{}, nil
	}

	rows, err := ix.db.Query(ctx, `
		SELECT id, document_id, text, title, category, filename, seq,
		       embedding IS NULL AS missing,
		       COALESCE(1 - (embedding <=> $1), 0) AS similarity
		FROM chunks
		WHERE $3 = '' OR category = $3
		ORDER BY embedding <=> $1 NULLS LAST, seq
		LIMIT $2`,
		pgv.NewVector(query), topK, filter.Category,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", entity.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]entity.VectorHit, 0, topK)
	for rows.Next() {
		var (
			h       entity.VectorHit
			missing bool
		)
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Text, &h.Meta.Title, &h.Meta.Category, &h.Meta.Filename,
			&h.Seq, &missing, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if missing {
			vectorstore.ReportCorruption(ctx, h.ChunkID, "chunk without a vector")
			continue
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read hits: %w", entity.ErrVectorIndexUnavailable, err)
	}

	return hits, nil
}

func (ix *Index) Stats(ctx context.Context) (*entity.VectorStats, error) {
	var stats entity.VectorStats
	err := ix.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks WHERE embedding IS NOT NULL`).
		Scan(&stats.ChunkCount, &stats.DocumentCount)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %w", entity.ErrVectorIndexUnavailable, err)
	}
	return &stats, nil
}

func (ix *Index) Dimensions() int {
	return ix.dimensions
}

// Close is a no-op; the pool belongs to the caller.
func (ix *Index) Close() error {
	return nil
}
