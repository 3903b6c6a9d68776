package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// RetryAfterSeconds is advertised on transient upstream failures.
const RetryAfterSeconds = 5

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Can't change response at this point, just log
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Success writes a success response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Accepted writes a 202 Accepted response
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status and message
func Error(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}

	body := entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	if status == http.StatusServiceUnavailable {
		body.Retryable = true
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	JSON(w, status, body)
}

// FromError maps a usecase error onto the HTTP status of its kind.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := Classify(err)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	Error(ctx, w, status, message, err)
}

// Classify returns the HTTP status and public message for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrSessionNotFound),
		errors.Is(err, entity.ErrDocumentNotFound),
		errors.Is(err, entity.ErrApplicationNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, entity.ErrInvalidParameter),
		errors.Is(err, entity.ErrInvalidFormat),
		errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrEmptyDocument),
		errors.Is(err, entity.ErrInvalidFile),
		errors.Is(err, entity.ErrInvalidExtension):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, entity.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, entity.ErrDocumentExists):
		return http.StatusConflict, "document already exists"
	case errors.Is(err, entity.ErrTurnCancelled):
		return http.StatusGone, "turn cancelled"
	case entity.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "service temporarily unavailable, please retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
