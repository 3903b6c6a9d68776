package document

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/pkg/logger"
	"github.com/futig/admissions-assistant/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

type Handler struct {
	usecase       DocumentUsecase
	callbackConn  CallbackConnector
	maxUploadSize int64

	background sync.WaitGroup
}

func NewHandler(
	usecase DocumentUsecase,
	callbackConn CallbackConnector,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		usecase:       usecase,
		callbackConn:  callbackConn,
		maxUploadSize: maxUploadSize,
	}
}

// IngestDocument handles POST /documents with a JSON text body
func (h *Handler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "IngestDocument")

	var req entity.IngestDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	h.ingest(ctx, w, r, &req)
}

// UploadDocument handles POST /documents/upload with a multipart .txt or .md file
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadDocument")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid form data or size too large", err)
		return
	}

	upload := &entity.UploadDocumentRequest{
		DocumentID:  r.FormValue("document_id"),
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		CallbackURL: r.FormValue("callback_url"),
	}
	if files := r.MultipartForm.File["file"]; len(files) > 0 {
		upload.File = files[0]
	}

	req, err := h.usecase.PrepareUpload(upload)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	h.ingest(ctx, w, r, req)
}

// ingest runs the ingestion in the request, or in the background when the
// caller asked to be called back.
func (h *Handler) ingest(ctx context.Context, w http.ResponseWriter, r *http.Request, req *entity.IngestDocumentRequest) {
	if req.CallbackURL == "" {
		resp, err := h.usecase.Ingest(ctx, req)
		if err != nil {
			response.FromError(ctx, w, err)
			return
		}
		response.Created(w, resp)
		return
	}

	if err := h.usecase.Normalize(req); err != nil {
		response.FromError(ctx, w, err)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	ctxzap.Info(ctx, "accepted document for background ingestion",
		zap.String("document_id", req.DocumentID),
		zap.String("callback_url", req.CallbackURL),
	)

	h.background.Add(1)
	go func() {
		defer h.background.Done()

		bgCtx := logger.AddFields(logger.Detach(ctx),
			zap.String("request_id", requestID),
			zap.String("action", "IngestDocument-async"),
		)

		resp, err := h.usecase.Ingest(bgCtx, req)
		if err != nil {
			ctxzap.Error(bgCtx, "failed to ingest document", zap.Error(err))
			h.callbackConn.SendError(bgCtx, req.CallbackURL, requestID, "failed to ingest document", map[string]any{
				"document_id": req.DocumentID,
				"error":       err.Error(),
				"retryable":   entity.IsRetryable(err),
			})
			return
		}

		h.callbackConn.SendDocumentIndexed(bgCtx, req.CallbackURL, requestID, resp)
	}()

	response.Accepted(w, &entity.IngestDocumentResponse{
		Status:     "accepted",
		DocumentID: req.DocumentID,
	})
}

// Wait blocks until background ingestions have finished.
func (h *Handler) Wait() {
	h.background.Wait()
}

// ListDocuments handles GET /documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListDocuments")

	docs, err := h.usecase.List(ctx)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, docs)
}

// GetDocument handles GET /documents/{id}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	ctx := logger.WithDocument(logger.WithAction(r.Context(), "GetDocument"), documentID)

	doc, err := h.usecase.Get(ctx, documentID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, doc)
}

// DeleteDocument handles DELETE /documents/{id}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	ctx := logger.WithDocument(logger.WithAction(r.Context(), "DeleteDocument"), documentID)

	removed, err := h.usecase.Delete(ctx, documentID)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, map[string]any{
		"document_id":    documentID,
		"chunks_removed": removed,
	})
}

// VectorStats handles GET /vector-stats
func (h *Handler) VectorStats(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "VectorStats")

	stats, err := h.usecase.Stats(ctx)
	if err != nil {
		response.FromError(ctx, w, err)
		return
	}

	response.Success(w, stats)
}
