package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(doc string, i int, category string, v ...float32) entity.Chunk {
	return entity.Chunk{
		ID:         entity.ChunkID(doc, i),
		DocumentID: doc,
		Position:   i,
		Text:       "text of " + entity.ChunkID(doc, i),
		Metadata:   entity.ChunkMeta{Title: doc, Category: category},
		Vector:     v,
	}
}

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	ix := New(2)

	require.NoError(t, ix.Insert(ctx, []entity.Chunk{
		chunk("a", 0, "general", 1, 0),
		chunk("a", 1, "general", 0, 1),
		chunk("a", 2, "general", 1, 1),
	}))

	hits, err := ix.Search(ctx, []float32{1, 0}, 5, entity.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a_chunk_0", hits[0].ChunkID)
	assert.Equal(t, "a_chunk_2", hits[1].ChunkID)
	assert.Equal(t, "a_chunk_1", hits[2].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-9)
}

func TestIndex_TiesBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ix := New(2)

	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("first", 0, "general", 2, 0)}))
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("second", 0, "general", 1, 0)}))
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("third", 0, "general", 5, 0)}))

	for range 10 {
		hits, err := ix.Search(ctx, []float32{1, 0}, 3, entity.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, []string{"first_chunk_0", "second_chunk_0", "third_chunk_0"},
			[]string{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})
	}
}

func TestIndex_TopKAndCategoryFilter(t *testing.T) {
	ctx := context.Background()
	ix := New(2)
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{
		chunk("a", 0, "admission", 1, 0),
		chunk("a", 1, "courses", 1, 0.1),
		chunk("a", 2, "admission", 1, 0.2),
	}))

	hits, err := ix.Search(ctx, []float32{1, 0}, 1, entity.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = ix.Search(ctx, []float32{1, 0}, 5, entity.SearchFilter{Category: "admission"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "admission", h.Meta.Category)
	}
}

func TestIndex_InsertIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	ix := New(2)

	err := ix.Insert(ctx, []entity.Chunk{
		chunk("a", 0, "general", 1, 0),
		chunk("a", 1, "general", 1, 0, 0),
	})
	require.ErrorIs(t, err, entity.ErrDimensionMismatch)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunkCount)

	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("a", 0, "general", 1, 0)}))
	err = ix.Insert(ctx, []entity.Chunk{chunk("b", 0, "general", 1, 0), chunk("a", 0, "general", 1, 0)})
	require.ErrorIs(t, err, entity.ErrDocumentExists)

	stats, err = ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestIndex_DeleteDocumentLeavesNoHits(t *testing.T) {
	ctx := context.Background()
	ix := New(2)
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("a", 0, "general", 1, 0), chunk("a", 1, "general", 0, 1)}))
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("b", 0, "general", 1, 1)}))

	deleted, err := ix.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	for _, q := range [][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, 0}} {
		hits, err := ix.Search(ctx, q, 10, entity.SearchFilter{})
		require.NoError(t, err)
		for _, h := range hits {
			assert.NotEqual(t, "a", h.DocumentID)
		}
	}
	assert.Empty(t, ix.vectors["a_chunk_0"])

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &entity.VectorStats{ChunkCount: 1, DocumentCount: 1}, stats)
}

func TestIndex_ExcludesCorruptedChunks(t *testing.T) {
	ctx := context.Background()
	ix := New(2)
	require.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk("a", 0, "general", 1, 0), chunk("a", 1, "general", 1, 0)}))

	delete(ix.vectors, "a_chunk_0")
	ix.vectors["ghost"] = []float32{1, 0}

	hits, err := ix.Search(ctx, []float32{1, 0}, 5, entity.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a_chunk_1", hits[0].ChunkID)
}

func TestIndex_EmptySearch(t *testing.T) {
	hits, err := New(3).Search(context.Background(), []float32{1, 2, 3}, 5, entity.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	ix := New(2)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			doc := string(rune('a' + i))
			assert.NoError(t, ix.Insert(ctx, []entity.Chunk{chunk(doc, 0, "general", 1, float32(i))}))
		}()
		go func() {
			defer wg.Done()
			_, err := ix.Search(ctx, []float32{1, 0}, 3, entity.SearchFilter{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.ChunkCount)
}
