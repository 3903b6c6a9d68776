package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/common"
	pkghttp "github.com/futig/admissions-assistant/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector calls an Ollama compatible /api/generate endpoint without streaming.
type Connector struct {
	config    config.LLMConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.LLMConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

func (c *Connector) Generate(ctx context.Context, prompt *entity.Prompt, maxTokens int) (string, error) {
	ctxzap.Info(ctx, "generating answer via LLM service",
		zap.String("model", c.config.Model),
		zap.Int("prompt_chars", len(prompt.Text)),
		zap.Int("context_chunks", len(prompt.Context)),
	)

	req := &entity.OllamaGenerateRequest{
		Model:  c.config.Model,
		Prompt: prompt.Text,
		System: prompt.System,
		Stream: false,
		Options: entity.OllamaGenerateOption{
			NumPredict:  maxTokens,
			Temperature: c.config.Temperature,
		},
	}

	var resp entity.OllamaGenerateResponse
	err := c.config.Retry.Do(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, pkghttp.IsRetryable)
	if err != nil {
		return "", fmt.Errorf("%w: generate failed: %w", entity.ErrGenerationUnavailable, err)
	}

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", entity.ErrGenerationUnavailable)
	}

	ctxzap.Info(ctx, "answer generated successfully", zap.Int("answer_chars", len(text)))

	return text, nil
}
