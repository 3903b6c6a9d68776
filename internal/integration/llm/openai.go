package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/integration/common"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConnector calls an OpenAI compatible chat completions API.
type OpenAIConnector struct {
	config config.LLMConfig
	client *openai.Client
}

func NewOpenAIConnector(cfg config.LLMConfig, logger *zap.Logger) *OpenAIConnector {
	return &OpenAIConnector{
		config: cfg,
		client: common.NewOpenAIClient(cfg.HTTPClientConfig, logger),
	}
}

func (c *OpenAIConnector) Generate(ctx context.Context, prompt *entity.Prompt, maxTokens int) (string, error) {
	ctxzap.Info(ctx, "generating answer via OpenAI API",
		zap.String("model", c.config.Model),
		zap.Int("prompt_chars", len(prompt.Text)),
	)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.Text})

	var resp openai.ChatCompletionResponse
	err := c.config.Retry.Do(ctx, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: float32(c.config.Temperature),
		})
		return err
	}, common.IsRetryableOpenAIError)
	if err != nil {
		if common.IsContentPolicyError(err) {
			return "", fmt.Errorf("%w: %w", entity.ErrGenerationRefused, err)
		}
		return "", fmt.Errorf("%w: generate failed: %w", entity.ErrGenerationUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", entity.ErrGenerationUnavailable)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%w: completion stopped by content filter", entity.ErrGenerationRefused)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", entity.ErrGenerationUnavailable)
	}

	ctxzap.Info(ctx, "answer generated successfully",
		zap.Int("answer_chars", len(text)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return text, nil
}
