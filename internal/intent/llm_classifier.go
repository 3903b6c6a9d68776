package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const analysisSystemPrompt = `You classify messages sent to a university admissions chatbot.
Decide whether the user is asking to start or submit an application right now.
Questions about how applying works, requirements or deadlines are NOT application intent.
Respond with a single JSON object and nothing else:
{"has_application_intent": true|false, "confidence": 0.0-1.0, "reasoning": "short explanation"}`

const analysisMaxTokens = 150

type Generator interface {
	Generate(ctx context.Context, prompt *entity.Prompt, maxTokens int) (string, error)
}

// LLMClassifier asks the language model for a JSON verdict and falls back to
// another classifier when the call fails or the answer does not parse.
type LLMClassifier struct {
	generator Generator
	fallback  Classifier
	timeout   time.Duration
}

func NewLLMClassifier(generator Generator, fallback Classifier, timeout time.Duration) *LLMClassifier {
	return &LLMClassifier{
		generator: generator,
		fallback:  fallback,
		timeout:   timeout,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, phase entity.Phase) (Result, error) {
	if phase != entity.PhaseNormal {
		return c.fallback.Classify(ctx, text, phase)
	}

	analysis, err := c.analyze(ctx, text)
	if err != nil {
		ctxzap.Warn(ctx, "LLM intent analysis failed, using keyword fallback", zap.Error(err))
		return c.fallback.Classify(ctx, text, phase)
	}

	return Result{
		IsApplicationIntent: analysis.HasApplicationIntent,
		Confidence:          min(1, max(0, analysis.Confidence)),
		Reasoning:           analysis.Reasoning,
	}, nil
}

func (c *LLMClassifier) analyze(ctx context.Context, text string) (*entity.IntentAnalysis, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := &entity.Prompt{
		System:   analysisSystemPrompt,
		Question: text,
		Text:     fmt.Sprintf("User message: %q\n\nJSON:", text),
	}

	raw, err := c.generator.Generate(ctx, prompt, analysisMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	return ParseAnalysis(raw)
}

// ParseAnalysis extracts the first JSON object from a model answer, tolerating
// code fences and surrounding prose.
func ParseAnalysis(raw string) (*entity.IntentAnalysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in analysis", entity.ErrInvalidFormat)
	}

	var analysis entity.IntentAnalysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %w", entity.ErrInvalidFormat, err)
	}
	return &analysis, nil
}
