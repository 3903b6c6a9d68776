package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// NewOpenAIClient points the SDK at cfg.Url and routes it through the shared transport.
func NewOpenAIClient(cfg config.HTTPClientConfig, logger *zap.Logger) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.Token)
	if cfg.Url != "" {
		clientCfg.BaseURL = cfg.Url
	}
	clientCfg.HTTPClient = NewBaseConnector(cfg, logger).HTTPClient()
	return openai.NewClientWithConfig(clientCfg)
}

// IsRetryableOpenAIError retries rate limits, server errors and transport failures.
func IsRetryableOpenAIError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	return true
}

// IsContentPolicyError reports whether the provider rejected the request on content grounds.
func IsContentPolicyError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code, _ := apiErr.Code.(string)
	return code == "content_filter" || code == "content_policy_violation"
}
