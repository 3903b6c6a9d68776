package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/admissions-assistant/internal/cache/memory"
	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	pkgRetry "github.com/futig/admissions-assistant/internal/pkg/retry"
	memindex "github.com/futig/admissions-assistant/internal/vectorstore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(url string, dims int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout:        time.Second,
			ConnTimeout:           time.Second,
			ResponseHeaderTimeout: time.Second,
			Url:                   url,
		},
		Provider:   "ollama",
		Model:      "nomic-embed-text",
		Endpoint:   "/api/embeddings",
		Dimensions: dims,
		Retry:      pkgRetry.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestConnector_EmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		var req entity.OllamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		json.NewEncoder(w).Encode(entity.OllamaEmbeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewConnector(testConfig(srv.URL, 3), zap.NewNop())
	vector, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnector_EmbedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewConnector(testConfig(srv.URL, 3), zap.NewNop())
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, entity.ErrEmbeddingUnavailable)
}

func TestConnector_EmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(entity.OllamaEmbeddingResponse{Embedding: []float32{1}}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewConnector(testConfig(srv.URL, 3), zap.NewNop()).Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, entity.ErrDimensionMismatch)
}

func TestMockConnector_SharedWordsAreSimilar(t *testing.T) {
	m := NewMockConnector(256, zap.NewNop())
	ctx := context.Background()

	doc, err := m.Embed(ctx, "Sample University offers Computer Science and Business programs.")
	require.NoError(t, err)
	query, err := m.Embed(ctx, "What programs are offered?")
	require.NoError(t, err)
	unrelated, err := m.Embed(ctx, "Parking permits cost twenty dollars")
	require.NoError(t, err)

	again, err := m.Embed(ctx, "What programs are offered?")
	require.NoError(t, err)
	assert.Equal(t, query, again)

	assert.Greater(t, memindex.Cosine(query, doc), 0.4)
	assert.Greater(t, memindex.Cosine(query, doc), memindex.Cosine(query, unrelated))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"program", "offer"}, Tokenize("What programs are offered?"))
	assert.Equal(t, []string{"business"}, Tokenize("Business"))
}

type countingEmbedder struct {
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{1, 0}, nil
}

func (c *countingEmbedder) Dimensions() int { return 2 }

func TestCachedEmbedder(t *testing.T) {
	next := &countingEmbedder{}
	cached := NewCachedEmbedder(next, memory.New(time.Minute, time.Minute), "m")
	ctx := context.Background()

	for range 3 {
		v, err := cached.Embed(ctx, "same text")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, v)
	}
	_, err := cached.Embed(ctx, "other text")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}
