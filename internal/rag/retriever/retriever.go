// Package retriever turns a query into the most similar indexed chunks.
package retriever

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/futig/admissions-assistant/internal/vectorstore"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorSearcher interface {
	Search(ctx context.Context, query []float32, topK int, filter entity.SearchFilter) ([]entity.VectorHit, error)
}

type Config struct {
	TopK             int
	MinSimilarity    float64
	EmbeddingTimeout time.Duration
	SearchTimeout    time.Duration
}

type Retriever struct {
	embedder Embedder
	index    VectorSearcher
	cfg      Config
}

func New(embedder Embedder, index VectorSearcher, cfg Config) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
	}
}

// Retrieve returns at most topK chunks scoring at least the minimum similarity,
// best first. An empty result means nothing matched; gateway and index
// failures are returned as errors.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter entity.SearchFilter) (*entity.RetrievalResult, error) {
	hits, err := r.search(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}
	return r.result(hits, topK), nil
}

// RetrieveAll runs every query and merges the hits. A chunk found by several
// queries keeps its best score.
func (r *Retriever) RetrieveAll(ctx context.Context, queries []string, topK int, filter entity.SearchFilter) (*entity.RetrievalResult, error) {
	best := make(map[string]entity.VectorHit)
	for _, q := range queries {
		hits, err := r.search(ctx, q, topK, filter)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if prev, ok := best[h.ChunkID]; !ok || h.Similarity > prev.Similarity {
				best[h.ChunkID] = h
			}
		}
	}

	merged := make([]entity.VectorHit, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	return r.result(merged, topK), nil
}

func (r *Retriever) TopK() int {
	return r.cfg.TopK
}

func (r *Retriever) search(ctx context.Context, query string, topK int, filter entity.SearchFilter) ([]entity.VectorHit, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	vector, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := withTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	started := time.Now()
	hits, err := r.index.Search(searchCtx, vector, topK, filter)
	observe("search", started, err)
	if err != nil {
		if errors.Is(err, entity.ErrVectorIndexUnavailable) || errors.Is(err, entity.ErrDimensionMismatch) {
			return nil, fmt.Errorf("search index: %w", err)
		}
		return nil, fmt.Errorf("%w: search index: %w", entity.ErrVectorIndexUnavailable, err)
	}

	valid := hits[:0:0]
	for _, h := range hits {
		if h.ChunkID == "" || h.Text == "" || math.IsNaN(h.Similarity) {
			vectorstore.ReportCorruption(ctx, h.ChunkID, "hit without text or score")
			continue
		}
		valid = append(valid, h)
	}
	return valid, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	embedCtx, cancel := withTimeout(ctx, r.cfg.EmbeddingTimeout)
	defer cancel()

	started := time.Now()
	vector, err := r.embedder.Embed(embedCtx, query)
	observe("embedding", started, err)
	if err != nil {
		if errors.Is(err, entity.ErrEmbeddingUnavailable) || errors.Is(err, entity.ErrDimensionMismatch) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return nil, fmt.Errorf("%w: embed query: %w", entity.ErrEmbeddingUnavailable, err)
	}
	return vector, nil
}

func (r *Retriever) result(hits []entity.VectorHit, topK int) *entity.RetrievalResult {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	kept := make([]entity.VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= r.cfg.MinSimilarity {
			kept = append(kept, h)
		}
	}

	slices.SortStableFunc(kept, func(a, b entity.VectorHit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}

	result := &entity.RetrievalResult{Chunks: make([]entity.RetrievedChunk, 0, len(kept))}
	for _, h := range kept {
		result.Chunks = append(result.Chunks, entity.RetrievedChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Title:      h.Meta.Title,
			Score:      h.Similarity,
			Text:       h.Text,
		})
	}

	metrics.RetrievedChunks.Observe(float64(len(result.Chunks)))
	return result
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func observe(gateway string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GatewayDuration.WithLabelValues(gateway, status).Observe(time.Since(started).Seconds())
}

// LogResult writes a compact summary of a retrieval to the context logger.
func LogResult(ctx context.Context, result *entity.RetrievalResult) {
	scores := make([]float64, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		scores = append(scores, c.Score)
	}
	ctxzap.Debug(ctx, "retrieval finished",
		zap.Strings("chunk_ids", result.ChunkIDs()),
		zap.Float64s("scores", scores),
	)
}
