package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/pkg/formatter"
	"github.com/futig/admissions-assistant/internal/pkg/logger"
	"github.com/futig/admissions-assistant/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase    ChatUsecase
	formatters *formatter.Factory
	university string
}

func NewHandler(usecase ChatUsecase, formatters *formatter.Factory, university string) *Handler {
	return &Handler{
		usecase:    usecase,
		formatters: formatters,
		university: university,
	}
}

// CreateSession handles POST /chat/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "CreateSession")

	session, err := h.usecase.CreateSession(ctx)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Created(w, session)
}

// GetSession handles GET /chat/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "GetSession"), sessionID)

	session, err := h.usecase.GetSession(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, session)
}

// GetHistory handles GET /chat/sessions/{id}/messages
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "GetHistory"), sessionID)

	history, err := h.usecase.GetHistory(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, history)
}

// PostMessage handles POST /chat/sessions/{id}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "PostMessage"), sessionID)

	var req entity.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.usecase.PostMessage(ctx, sessionID, &req)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "chat turn answered",
		zap.String("phase", string(result.Phase)),
		zap.Strings("used_chunk_ids", result.UsedChunkIDs),
	)

	response.Success(w, result)
}

// ResetSession handles POST /chat/sessions/{id}/reset
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "ResetSession"), sessionID)

	session, err := h.usecase.ResetSession(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, session)
}

// DeleteSession handles DELETE /chat/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "DeleteSession"), sessionID)

	if err := h.usecase.DeleteSession(ctx, sessionID); err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.NoContent(w)
}

// GetApplication handles GET /chat/sessions/{id}/application
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "GetApplication"), sessionID)

	app, err := h.usecase.GetApplication(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, app)
}

// ExportTranscript handles GET /chat/sessions/{id}/transcript?format=markdown|pdf|docx
func (h *Handler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.WithSession(logger.WithAction(r.Context(), "ExportTranscript"), sessionID)

	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = string(entity.FormatMarkdown)
	}

	format := entity.ExportFormat(formatParam)
	if !format.IsValid() {
		response.Error(ctx, w, http.StatusBadRequest, "format must be one of: markdown, pdf, docx",
			fmt.Errorf("%w: format %q", entity.ErrInvalidParameter, formatParam))
		return
	}

	fmtr, err := h.formatters.Create(format)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	history, err := h.usecase.GetHistory(ctx, sessionID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	app, err := h.usecase.GetApplication(ctx, sessionID)
	if err != nil && !errors.Is(err, entity.ErrApplicationNotFound) {
		response.FromError(ctx, w, err)
		return
	}

	content, err := fmtr.Format(&formatter.Transcript{
		Title:       fmt.Sprintf("%s admissions chat", h.university),
		SessionID:   sessionID,
		ExportedAt:  time.Now(),
		Messages:    history.Messages,
		Application: app,
	})
	if err != nil {
		response.Error(ctx, w, http.StatusInternalServerError, "failed to format transcript", err)
		return
	}

	ctxzap.Info(ctx, "transcript exported",
		zap.String("format", string(format)),
		zap.Int("messages", len(history.Messages)),
	)

	w.Header().Set("Content-Type", fmtr.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.Filename(sessionID, fmtr)))
	w.WriteHeader(http.StatusOK)
	w.Write(content) //nolint:errcheck
}
