package embedding

import (
	"context"
	"fmt"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/common"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConnector calls an OpenAI compatible /embeddings API.
type OpenAIConnector struct {
	config config.EmbeddingConfig
	client *openai.Client
}

func NewOpenAIConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *OpenAIConnector {
	return &OpenAIConnector{
		config: cfg,
		client: common.NewOpenAIClient(cfg.HTTPClientConfig, logger),
	}
}

func (c *OpenAIConnector) Embed(ctx context.Context, text string) ([]float32, error) {
	ctxzap.Debug(ctx, "embedding text via OpenAI API", zap.String("model", c.config.Model))

	var resp openai.EmbeddingResponse
	err := c.config.Retry.Do(ctx, func() error {
		var err error
		resp, err = c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.config.Model),
		})
		return err
	}, common.IsRetryableOpenAIError)
	if err != nil {
		return nil, fmt.Errorf("%w: embed failed: %w", entity.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", entity.ErrEmbeddingUnavailable)
	}

	vector := resp.Data[0].Embedding
	if len(vector) != c.config.Dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			entity.ErrDimensionMismatch, c.config.Model, len(vector), c.config.Dimensions)
	}
	return vector, nil
}

func (c *OpenAIConnector) Dimensions() int {
	return c.config.Dimensions
}
