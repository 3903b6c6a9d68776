package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/embedding"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/futig/admissions-assistant/internal/rag/chunker"
	"github.com/futig/admissions-assistant/internal/repository"
	"github.com/futig/admissions-assistant/internal/repository/memory"
	vectormemory "github.com/futig/admissions-assistant/internal/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const dims = 64

type flakyEmbedder struct {
	inner  Embedder
	failOn int64
	calls  atomic.Int64
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.calls.Add(1) == e.failOn {
		return nil, errors.New("connection reset")
	}
	return e.inner.Embed(ctx, text)
}

type failingCreateRepo struct {
	repository.DocumentRepository
}

func (failingCreateRepo) Create(context.Context, *entity.Document) (*entity.Document, error) {
	return nil, errors.New("database is down")
}

type harness struct {
	uc    *DocumentUsecase
	repo  repository.DocumentRepository
	index *vectormemory.Index
}

func newHarness(t *testing.T, embedder Embedder, repo repository.DocumentRepository) *harness {
	t.Helper()

	if embedder == nil {
		embedder = embedding.NewMockConnector(dims, zap.NewNop())
	}
	if repo == nil {
		repo = memory.NewDocumentStore()
	}

	c, err := chunker.New(40, 10)
	require.NoError(t, err)

	index := vectormemory.New(dims)
	v := validator.New(config.FileUploadConfig{
		MaxFileSize:       1 << 20,
		AllowedExtensions: []string{".txt", ".md"},
	}, 4000, []string{"admission", "courses", "general"})

	uc := NewUsecase(repo, index, embedder, c, v, Config{
		Concurrency:      3,
		DefaultCategory:  "general",
		EmbeddingTimeout: time.Second,
	}, zap.NewNop())

	return &harness{uc: uc, repo: repo, index: index}
}

const sampleText = "Sample University offers Computer Science and Business programs. " +
	"Applications for the fall semester close on the first of March."

func TestIngestIndexesEveryChunk(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	resp, err := h.uc.Ingest(ctx, &entity.IngestDocumentRequest{
		DocumentID: "brochure",
		Title:      "  Brochure ",
		Text:       sampleText,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, resp.Status)
	assert.Equal(t, "brochure", resp.DocumentID)

	spans, err := chunker.Split(sampleText, 40, 10)
	require.NoError(t, err)
	assert.Equal(t, len(spans), resp.ChunkCount)

	doc, err := h.uc.Get(ctx, "brochure")
	require.NoError(t, err)
	assert.Equal(t, "Brochure", doc.Title)
	assert.Equal(t, "general", doc.Category)
	assert.Equal(t, int64(len(sampleText)), doc.ByteLength)
	require.Len(t, doc.ChunkIDs, len(spans))
	assert.Equal(t, "brochure_chunk_0", doc.ChunkIDs[0])

	stats, err := h.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(spans), stats.ChunkCount)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.IndexedDocuments)
}

func TestIngestGeneratesDocumentID(t *testing.T) {
	h := newHarness(t, nil, nil)

	resp, err := h.uc.Ingest(context.Background(), &entity.IngestDocumentRequest{
		Title:    "Fees",
		Category: "admission",
		Text:     "Tuition is 9000 per year.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, 1, resp.ChunkCount)
}

func TestIngestRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *entity.IngestDocumentRequest
		want error
	}{
		{
			name: "missing title",
			req:  &entity.IngestDocumentRequest{Text: sampleText},
			want: entity.ErrMissingField,
		},
		{
			name: "blank text",
			req:  &entity.IngestDocumentRequest{Title: "Empty", Text: "   "},
			want: entity.ErrEmptyDocument,
		},
		{
			name: "unknown category",
			req:  &entity.IngestDocumentRequest{Title: "Sports", Text: sampleText, Category: "sports"},
			want: entity.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.uc.Ingest(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stats, err := h.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
}

func TestIngestDuplicateDocument(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	req := func() *entity.IngestDocumentRequest {
		return &entity.IngestDocumentRequest{DocumentID: "dup", Title: "Dup", Text: sampleText}
	}

	first, err := h.uc.Ingest(ctx, req())
	require.NoError(t, err)

	_, err = h.uc.Ingest(ctx, req())
	assert.ErrorIs(t, err, entity.ErrDocumentExists)

	stats, err := h.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ChunkCount, stats.ChunkCount)
}

func TestIngestEmbeddingFailureLeavesNothingBehind(t *testing.T) {
	embedder := &flakyEmbedder{inner: embedding.NewMockConnector(dims, zap.NewNop()), failOn: 2}
	h := newHarness(t, embedder, nil)
	ctx := context.Background()

	_, err := h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: "doc", Title: "Doc", Text: sampleText})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrEmbeddingUnavailable)
	assert.True(t, entity.IsRetryable(err))

	stats, err := h.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
	assert.Zero(t, stats.IndexedDocuments)

	_, err = h.uc.Get(ctx, "doc")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)
}

func TestIngestRecordFailureRollsBackIndex(t *testing.T) {
	h := newHarness(t, nil, failingCreateRepo{memory.NewDocumentStore()})
	ctx := context.Background()

	_, err := h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: "doc", Title: "Doc", Text: sampleText})
	require.Error(t, err)

	stats, err := h.index.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
}

func TestDeleteRemovesEveryVector(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	embedder := embedding.NewMockConnector(dims, zap.NewNop())

	resp, err := h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: "brochure", Title: "Brochure", Text: sampleText})
	require.NoError(t, err)
	_, err = h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: "other", Title: "Other", Text: "Campus housing is guaranteed for first year students."})
	require.NoError(t, err)

	removed, err := h.uc.Delete(ctx, "brochure")
	require.NoError(t, err)
	assert.Equal(t, resp.ChunkCount, removed)

	query, err := embedder.Embed(ctx, "Computer Science programs")
	require.NoError(t, err)
	hits, err := h.index.Search(ctx, query, 50, entity.SearchFilter{})
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "brochure", hit.DocumentID)
	}

	_, err = h.uc.Get(ctx, "brochure")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)

	stats, err := h.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.IndexedDocuments)
}

func TestDeleteUnknownDocument(t *testing.T) {
	h := newHarness(t, nil, nil)

	_, err := h.uc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)
}

func TestDeleteCleansOrphanedVectors(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	vector := make([]float32, dims)
	vector[0] = 1
	require.NoError(t, h.index.Insert(ctx, []entity.Chunk{
		{ID: entity.ChunkID("orphan", 0), DocumentID: "orphan", Text: "left over", Vector: vector},
	}))

	removed, err := h.uc.Delete(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := h.index.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
}

func TestConcurrentIngestAndDeleteOfSameDocument(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	for i := range 10 {
		id := fmt.Sprintf("doc-%d", i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: id, Title: "Doc", Text: sampleText})
		}()
		go func() {
			defer wg.Done()
			_, _ = h.uc.Delete(ctx, id)
		}()
		wg.Wait()

		_, getErr := h.uc.Get(ctx, id)
		removed, err := h.index.DeleteDocument(ctx, id)
		require.NoError(t, err)
		if getErr == nil {
			assert.Positive(t, removed, "recorded document %s lost its vectors", id)
		} else {
			assert.Zero(t, removed, "vectors of %s outlived its record", id)
		}
	}
}

func TestPrepareUpload(t *testing.T) {
	h := newHarness(t, nil, nil)

	file := multipartFile(t, "Admission Guide (2025).md", "# Deadlines\nApply by March 1.")

	req, err := h.uc.PrepareUpload(&entity.UploadDocumentRequest{File: file, Category: "admission"})
	require.NoError(t, err)
	assert.Equal(t, "Admission Guide (2025)", req.Title)
	assert.Equal(t, "Admission_Guide_2025.md", req.Filename)
	assert.Equal(t, "# Deadlines\nApply by March 1.", req.Text)
	assert.Equal(t, "admission", req.Category)

	resp, err := h.uc.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ChunkCount)
}

func TestPrepareUploadRejectsExtension(t *testing.T) {
	h := newHarness(t, nil, nil)

	file := multipartFile(t, "brochure.exe", "MZ")

	_, err := h.uc.PrepareUpload(&entity.UploadDocumentRequest{File: file})
	assert.ErrorIs(t, err, entity.ErrInvalidExtension)
}

func TestListDocuments(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	empty, err := h.uc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty.Documents)
	assert.Zero(t, empty.Total)

	for _, id := range []string{"a", "b"} {
		_, err := h.uc.Ingest(ctx, &entity.IngestDocumentRequest{DocumentID: id, Title: strings.ToUpper(id), Text: sampleText})
		require.NoError(t, err)
	}

	list, err := h.uc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
}

func multipartFile(t *testing.T, name, content string) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest("POST", "/documents/upload", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, r.ParseMultipartForm(1<<20))

	return r.MultipartForm.File["file"][0]
}
