package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/common"
	pkghttp "github.com/futig/admissions-assistant/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector calls an Ollama compatible embeddings endpoint.
type Connector struct {
	config    config.EmbeddingConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.EmbeddingConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

func (c *Connector) Embed(ctx context.Context, text string) ([]float32, error) {
	ctxzap.Debug(ctx, "embedding text via embedding service",
		zap.String("model", c.config.Model),
		zap.Int("chars", len(text)),
	)

	req := &entity.OllamaEmbeddingRequest{
		Model:  c.config.Model,
		Prompt: text,
	}

	var resp entity.OllamaEmbeddingResponse
	err := c.config.Retry.Do(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, pkghttp.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("%w: embed failed: %w", entity.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Embedding) != c.config.Dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			entity.ErrDimensionMismatch, c.config.Model, len(resp.Embedding), c.config.Dimensions)
	}

	return resp.Embedding, nil
}

func (c *Connector) Dimensions() int {
	return c.config.Dimensions
}
