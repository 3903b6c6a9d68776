package chat

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/intent"
)

type Retriever interface {
	RetrieveAll(ctx context.Context, queries []string, topK int, filter entity.SearchFilter) (*entity.RetrievalResult, error)
}

type Assembler interface {
	Assemble(result *entity.RetrievalResult, history []entity.ChatMessage, question string) *entity.Prompt
}

type Generator interface {
	Generate(ctx context.Context, prompt *entity.Prompt, maxTokens int) (string, error)
}

type FieldExtractor interface {
	Extract(text string, expecting entity.ApplicationField) map[entity.ApplicationField]string
	IsCancel(text string) bool
}

type Classifier = intent.Classifier
