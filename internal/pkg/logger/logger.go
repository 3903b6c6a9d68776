package logger

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// AddFields adds fields to the logger in context and returns new context
func AddFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, logger.With(fields...))
}

// WithAction adds "action" field to context logger to describe the flow
func WithAction(ctx context.Context, action string) context.Context {
	return AddFields(ctx, zap.String("action", action))
}

func WithSession(ctx context.Context, sessionID string) context.Context {
	return AddFields(ctx, zap.String("session_id", sessionID))
}

func WithDocument(ctx context.Context, documentID string) context.Context {
	return AddFields(ctx, zap.String("document_id", documentID))
}

// Detach keeps the request logger but drops cancellation, for work that outlives the request.
func Detach(ctx context.Context) context.Context {
	return ctxzap.ToContext(context.WithoutCancel(ctx), ctxzap.Extract(ctx))
}
