package document

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsecase struct {
	ingestErr error
}

func (f *fakeUsecase) Normalize(req *entity.IngestDocumentRequest) error {
	if req.Title == "" {
		return entity.ErrMissingField
	}
	if req.DocumentID == "" {
		req.DocumentID = "generated"
	}
	return nil
}

func (f *fakeUsecase) Ingest(_ context.Context, req *entity.IngestDocumentRequest) (*entity.IngestDocumentResponse, error) {
	if err := f.Normalize(req); err != nil {
		return nil, err
	}
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &entity.IngestDocumentResponse{Status: "indexed", DocumentID: req.DocumentID, ChunkCount: 2}, nil
}

func (f *fakeUsecase) PrepareUpload(*entity.UploadDocumentRequest) (*entity.IngestDocumentRequest, error) {
	return nil, entity.ErrInvalidExtension
}

func (f *fakeUsecase) Delete(_ context.Context, id string) (int, error) {
	if id != "doc" {
		return 0, entity.ErrDocumentNotFound
	}
	return 3, nil
}

func (f *fakeUsecase) List(context.Context) (*entity.DocumentListDTO, error) {
	return &entity.DocumentListDTO{Documents: []*entity.Document{}}, nil
}

func (f *fakeUsecase) Get(context.Context, string) (*entity.Document, error) {
	return nil, entity.ErrDocumentNotFound
}

func (f *fakeUsecase) Stats(context.Context) (*entity.VectorStats, error) {
	return &entity.VectorStats{ChunkCount: 7, DocumentCount: 2, IndexedDocuments: 2}, nil
}

type recordingCallback struct {
	mu      sync.Mutex
	indexed []*entity.IngestDocumentResponse
	errors  []map[string]any
}

func (c *recordingCallback) SendError(_ context.Context, _, _, _ string, details map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, details)
}

func (c *recordingCallback) SendDocumentIndexed(_ context.Context, _, _ string, data *entity.IngestDocumentResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexed = append(c.indexed, data)
}

func setup(uc DocumentUsecase) (*Handler, *recordingCallback, http.Handler) {
	cb := &recordingCallback{}
	h := NewHandler(uc, cb, 1<<20)
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return h, cb, r
}

func send(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIngestDocumentSync(t *testing.T) {
	_, _, r := setup(&fakeUsecase{})

	rec := send(r, http.MethodPost, "/documents", `{"document_id":"doc","title":"Brochure","text":"Programs"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp entity.IngestDocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "doc", resp.DocumentID)
	assert.Equal(t, 2, resp.ChunkCount)
}

func TestIngestDocumentWithCallback(t *testing.T) {
	h, cb, r := setup(&fakeUsecase{})

	rec := send(r, http.MethodPost, "/documents", `{"title":"Brochure","text":"Programs","callback_url":"http://example.test/hook"}`)
	h.Wait()

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp entity.IngestDocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "generated", resp.DocumentID)

	require.Len(t, cb.indexed, 1)
	assert.Equal(t, "generated", cb.indexed[0].DocumentID)
	assert.Empty(t, cb.errors)
}

func TestIngestDocumentCallbackReportsFailure(t *testing.T) {
	h, cb, r := setup(&fakeUsecase{ingestErr: fmt.Errorf("%w: connection refused", entity.ErrEmbeddingUnavailable)})

	rec := send(r, http.MethodPost, "/documents", `{"document_id":"doc","title":"Brochure","text":"Programs","callback_url":"http://example.test/hook"}`)
	h.Wait()

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, cb.indexed)
	require.Len(t, cb.errors, 1)
	assert.Equal(t, "doc", cb.errors[0]["document_id"])
	assert.Equal(t, true, cb.errors[0]["retryable"])
}

func TestIngestDocumentInvalidRequestIsRejectedUpFront(t *testing.T) {
	h, cb, r := setup(&fakeUsecase{})

	rec := send(r, http.MethodPost, "/documents", `{"text":"Programs","callback_url":"http://example.test/hook"}`)
	h.Wait()

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, cb.indexed)
	assert.Empty(t, cb.errors)
}

func TestDeleteDocument(t *testing.T) {
	_, _, r := setup(&fakeUsecase{})

	rec := send(r, http.MethodDelete, "/documents/doc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chunks_removed":3`)

	rec = send(r, http.MethodDelete, "/documents/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVectorStats(t *testing.T) {
	_, _, r := setup(&fakeUsecase{})

	rec := send(r, http.MethodGet, "/vector-stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats entity.VectorStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 7, stats.ChunkCount)
	assert.Equal(t, 2, stats.IndexedDocuments)
}
