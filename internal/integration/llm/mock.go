package llm

import (
	"context"
	"strings"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const mockAnswerChars = 400

// MockConnector answers from the best context chunk without calling a model.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) Generate(ctx context.Context, prompt *entity.Prompt, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctxzap.Info(ctx, "[MOCK] generating answer", zap.Int("context_chunks", len(prompt.Context)))

	if len(prompt.Context) == 0 {
		return "I couldn't find that in the university documents. Please contact the admissions office for details.", nil
	}

	excerpt := []rune(strings.TrimSpace(prompt.Context[0].Text))
	if len(excerpt) > mockAnswerChars {
		excerpt = append(excerpt[:mockAnswerChars], '…')
	}
	return "According to the university documents: " + string(excerpt), nil
}
