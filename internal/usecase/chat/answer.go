package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// short follow-ups like "and the fees?" are also searched together with the previous question
const followUpWords = 5

type turnReply struct {
	text        string
	retrieval   *entity.RetrievalResult
	phase       entity.Phase
	refused     bool
	application *entity.Application
	outcome     string
}

// answer runs retrieval, context assembly and generation for a NORMAL turn.
func (uc *ChatUsecase) answer(
	ctx context.Context,
	session *entity.ChatSession,
	history []*entity.ChatMessage,
	text, category string,
) (*turnReply, error) {
	result, err := uc.retriever.RetrieveAll(ctx, searchQueries(text, history), uc.cfg.TopK, entity.SearchFilter{Category: category})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := uc.assembler.Assemble(result, messageValues(history), text)

	ctxzap.Debug(ctx, "prompt assembled",
		zap.Int("context_chunks", len(prompt.Context)),
		zap.Int("history_messages", len(prompt.History)),
	)

	response, err := uc.generate(ctx, prompt)
	if errors.Is(err, entity.ErrGenerationRefused) {
		ctxzap.Warn(ctx, "generation refused, answering with apology", zap.Error(err))
		return &turnReply{
			text:    uc.cfg.RefusalMessage,
			phase:   session.Phase,
			refused: true,
			outcome: "refused",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	reply := &turnReply{
		text:    response,
		phase:   session.Phase,
		outcome: "answered",
	}
	if !result.Empty() {
		reply.retrieval = result
	}
	return reply, nil
}

func (uc *ChatUsecase) generate(ctx context.Context, prompt *entity.Prompt) (string, error) {
	genCtx := ctx
	if uc.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
		defer cancel()
	}

	started := time.Now()
	response, err := uc.generator.Generate(genCtx, prompt, uc.cfg.MaxTokens)
	response = strings.TrimSpace(response)
	if err == nil && response == "" {
		err = fmt.Errorf("%w: empty completion", entity.ErrGenerationUnavailable)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GatewayDuration.WithLabelValues("generation", status).Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		return response, nil
	case errors.Is(err, entity.ErrGenerationRefused):
		return "", err
	case ctx.Err() != nil:
		return "", fmt.Errorf("generate answer: %w", ctx.Err())
	case errors.Is(err, entity.ErrGenerationUnavailable):
		return "", fmt.Errorf("generate answer: %w", err)
	default:
		// timeouts and unclassified gateway failures are transient
		return "", fmt.Errorf("generate answer: %w: %w", entity.ErrGenerationUnavailable, err)
	}
}

func searchQueries(text string, history []*entity.ChatMessage) []string {
	queries := []string{text}
	if len(strings.Fields(text)) > followUpWords {
		return queries
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == entity.RoleUser {
			return append(queries, history[i].Text+" "+text)
		}
	}
	return queries
}

func messageValues(history []*entity.ChatMessage) []entity.ChatMessage {
	out := make([]entity.ChatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, *m)
	}
	return out
}
