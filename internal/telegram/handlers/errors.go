package handlers

import (
	"context"
	"errors"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/telegram/render"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota
	SeverityError
)

// HandlerError represents a structured error with user message and logging info
type HandlerError struct {
	Err         error
	UserMessage string
	LogMessage  string
	Severity    ErrorSeverity
}

// classifyHandlerError maps a domain error to the reply the user sees
func classifyHandlerError(err error) *HandlerError {
	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		return &HandlerError{Err: err, UserMessage: render.ErrSessionNotFound, LogMessage: "session not found", Severity: SeverityWarning}
	case errors.Is(err, entity.ErrTurnCancelled):
		return &HandlerError{Err: err, UserMessage: render.ErrTurnCancelled, LogMessage: "turn cancelled", Severity: SeverityWarning}
	case errors.Is(err, entity.ErrInvalidParameter),
		errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidFormat):
		return &HandlerError{Err: err, UserMessage: render.ErrInvalidInput, LogMessage: "invalid message", Severity: SeverityWarning}
	case entity.IsRetryable(err):
		return &HandlerError{Err: err, UserMessage: render.ErrServiceUnavailable, LogMessage: "upstream unavailable", Severity: SeverityError}
	case errors.Is(err, context.DeadlineExceeded):
		return &HandlerError{Err: err, UserMessage: render.ErrTimeout, LogMessage: "operation timed out", Severity: SeverityError}
	default:
		return &HandlerError{Err: err, UserMessage: render.ErrGeneric, LogMessage: "handler error", Severity: SeverityError}
	}
}

// handleError logs the error with its severity and sends a user-friendly message
func (h *ChatHandler) handleError(ctx context.Context, chatID int64, err error) {
	if err == nil {
		return
	}

	handlerErr := classifyHandlerError(err)

	switch handlerErr.Severity {
	case SeverityError:
		ctxzap.Error(ctx, handlerErr.LogMessage,
			zap.Error(handlerErr.Err),
			zap.Int64("chat_id", chatID),
		)
	case SeverityWarning:
		ctxzap.Warn(ctx, handlerErr.LogMessage,
			zap.Error(handlerErr.Err),
			zap.Int64("chat_id", chatID),
		)
	}

	h.sender.Send(chatID, handlerErr.UserMessage) //nolint:errcheck
}
