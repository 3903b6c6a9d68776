package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", fmt.Errorf("get session: %w", entity.ErrSessionNotFound), http.StatusNotFound},
		{"document not found", entity.ErrDocumentNotFound, http.StatusNotFound},
		{"missing field", fmt.Errorf("%w: message", entity.ErrMissingField), http.StatusBadRequest},
		{"bad category", entity.ErrInvalidParameter, http.StatusBadRequest},
		{"too large", entity.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"duplicate document", entity.ErrDocumentExists, http.StatusConflict},
		{"cancelled turn", fmt.Errorf("%w: context canceled", entity.ErrTurnCancelled), http.StatusGone},
		{"embedding down", fmt.Errorf("retrieve: %w", entity.ErrEmbeddingUnavailable), http.StatusServiceUnavailable},
		{"generation down", entity.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{"index down", entity.ErrVectorIndexUnavailable, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := Classify(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestFromErrorRetryable(t *testing.T) {
	rec := httptest.NewRecorder()

	FromError(context.Background(), rec, fmt.Errorf("generate: %w", entity.ErrGenerationUnavailable))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	var body entity.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Message, "generate")
}

func TestFromErrorClientErrorExplainsItself(t *testing.T) {
	rec := httptest.NewRecorder()

	FromError(context.Background(), rec, fmt.Errorf("%w: message", entity.ErrMissingField))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	var body entity.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Retryable)
	assert.Contains(t, body.Message, "message")
}
