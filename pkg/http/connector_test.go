package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDoRequest_DecodesAndSendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/echo", r.URL.Path)
		w.Write([]byte(`{"value":"ok"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zap.NewNop()}, WithAuthToken("secret"), WithRequestLogging())

	var resp struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.DoRequest(context.Background(), http.MethodPost, "/echo", map[string]string{"a": "b"}, &resp))
	assert.Equal(t, "ok", resp.Value)
}

func TestDoRequest_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	err := c.DoRequest(context.Background(), http.MethodGet, "/", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&HTTPError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsRetryable(&HTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(&NetworkError{Err: errors.New("connection refused")}))
	assert.False(t, IsRetryable(context.Canceled))
}
