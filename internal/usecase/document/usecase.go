// Package document owns the ingestion pipeline: chunk, embed, index, record.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/futig/admissions-assistant/internal/pkg/keylock"
	"github.com/futig/admissions-assistant/internal/pkg/logger"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/futig/admissions-assistant/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const StatusIndexed = "indexed"

type Config struct {
	Concurrency      int
	DefaultCategory  string
	EmbeddingTimeout time.Duration
}

// DocumentUsecase implements document ingestion and deletion
type DocumentUsecase struct {
	documentRepo repository.DocumentRepository
	index        VectorIndex
	embedder     Embedder
	chunker      Chunker
	validator    *validator.Validator
	cfg          Config
	logger       *zap.Logger

	// ingestion and deletion of the same document are serialized
	documents *keylock.KeyLock
}

// NewUsecase creates a new document use case
func NewUsecase(
	documentRepo repository.DocumentRepository,
	index VectorIndex,
	embedder Embedder,
	chunker Chunker,
	validator *validator.Validator,
	cfg Config,
	logger *zap.Logger,
) *DocumentUsecase {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &DocumentUsecase{
		documentRepo: documentRepo,
		index:        index,
		embedder:     embedder,
		chunker:      chunker,
		validator:    validator,
		cfg:          cfg,
		logger:       logger,
		documents:    keylock.New(),
	}
}

// Ingest chunks, embeds and indexes one document. Either every chunk of the
// document ends up in the index together with its record, or nothing does.
func (uc *DocumentUsecase) Ingest(ctx context.Context, req *entity.IngestDocumentRequest) (*entity.IngestDocumentResponse, error) {
	if err := uc.Normalize(req); err != nil {
		return nil, err
	}
	ctx = logger.WithDocument(ctx, req.DocumentID)

	unlock, err := uc.documents.Lock(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := uc.ingest(ctx, req)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.DocumentsIngested.WithLabelValues("indexed").Inc()
	metrics.ChunksIndexed.Add(float64(len(doc.ChunkIDs)))

	ctxzap.Info(ctx, "document ingested",
		zap.String("title", doc.Title),
		zap.String("category", doc.Category),
		zap.Int("chunks", len(doc.ChunkIDs)),
	)

	return &entity.IngestDocumentResponse{
		Status:     StatusIndexed,
		DocumentID: doc.ID,
		ChunkCount: len(doc.ChunkIDs),
	}, nil
}

// Normalize validates the request and fills in the document id and category.
// Callers that ingest in the background run it first so a bad request is
// rejected before it is accepted.
func (uc *DocumentUsecase) Normalize(req *entity.IngestDocumentRequest) error {
	if err := uc.validator.ValidateIngest(req); err != nil {
		return err
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.New().String()
	}
	if req.Category == "" {
		req.Category = uc.cfg.DefaultCategory
	}
	req.Title = strings.TrimSpace(req.Title)
	return nil
}

func (uc *DocumentUsecase) ingest(ctx context.Context, req *entity.IngestDocumentRequest) (*entity.Document, error) {
	if _, err := uc.documentRepo.Get(ctx, req.DocumentID); err == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrDocumentExists, req.DocumentID)
	} else if !errors.Is(err, entity.ErrDocumentNotFound) {
		return nil, fmt.Errorf("check document: %w", err)
	}

	chunks := uc.chunker.Chunks(req.DocumentID, req.Text, entity.ChunkMeta{
		Title:    req.Title,
		Category: req.Category,
		Filename: req.Filename,
	})
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrEmptyDocument, req.DocumentID)
	}

	if err := uc.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if err := uc.index.Insert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	chunkIDs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		chunkIDs = append(chunkIDs, c.ID)
	}

	doc, err := uc.documentRepo.Create(ctx, &entity.Document{
		ID:         req.DocumentID,
		Title:      req.Title,
		Category:   req.Category,
		Filename:   req.Filename,
		ByteLength: int64(len(req.Text)),
		ChunkIDs:   chunkIDs,
		IngestedAt: time.Now().UTC(),
	})
	if err != nil {
		// roll back the index insert
		if _, rerr := uc.index.DeleteDocument(logger.Detach(ctx), req.DocumentID); rerr != nil {
			ctxzap.Error(ctx, "failed to roll back indexed chunks", zap.Error(rerr))
		}
		return nil, fmt.Errorf("save document: %w", err)
	}

	return doc, nil
}

// embedChunks fills in every chunk vector, a bounded number at a time. The
// first failure cancels the rest.
func (uc *DocumentUsecase) embedChunks(ctx context.Context, chunks []entity.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Concurrency)

	for i := range chunks {
		g.Go(func() error {
			embedCtx, cancel := withTimeout(gctx, uc.cfg.EmbeddingTimeout)
			defer cancel()

			started := time.Now()
			vector, err := uc.embedder.Embed(embedCtx, chunks[i].Text)
			observe(started, err)
			if err != nil {
				if errors.Is(err, entity.ErrEmbeddingUnavailable) || errors.Is(err, entity.ErrDimensionMismatch) {
					return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
				}
				return fmt.Errorf("%w: embed chunk %s: %w", entity.ErrEmbeddingUnavailable, chunks[i].ID, err)
			}
			chunks[i].Vector = vector
			return nil
		})
	}

	return g.Wait()
}

// PrepareUpload reads an uploaded text file into an ingestion request.
func (uc *DocumentUsecase) PrepareUpload(req *entity.UploadDocumentRequest) (*entity.IngestDocumentRequest, error) {
	if err := uc.validator.ValidateUpload(req); err != nil {
		return nil, err
	}

	f, err := req.File.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", entity.ErrInvalidFile, req.File.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", entity.ErrInvalidFile, req.File.Filename, err)
	}

	title := req.Title
	if title == "" {
		title = validator.TitleFromFilename(req.File.Filename)
	}

	return &entity.IngestDocumentRequest{
		DocumentID:  req.DocumentID,
		Text:        string(content),
		Title:       title,
		Category:    req.Category,
		Filename:    validator.SanitizeFilename(req.File.Filename),
		CallbackURL: req.CallbackURL,
	}, nil
}

// Delete removes the document record and every vector it produced. Vectors
// left behind by an interrupted ingestion are removed even without a record.
func (uc *DocumentUsecase) Delete(ctx context.Context, id string) (int, error) {
	ctx = logger.WithDocument(ctx, id)

	unlock, err := uc.documents.Lock(ctx, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	_, getErr := uc.documentRepo.Get(ctx, id)
	if getErr != nil && !errors.Is(getErr, entity.ErrDocumentNotFound) {
		return 0, fmt.Errorf("get document: %w", getErr)
	}

	removed, err := uc.index.DeleteDocument(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	if getErr != nil {
		if removed == 0 {
			return 0, getErr
		}
		ctxzap.Warn(ctx, "removed orphaned chunks of unknown document", zap.Int("chunks", removed))
		return removed, nil
	}

	if err := uc.documentRepo.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}

	ctxzap.Info(ctx, "document deleted", zap.Int("chunks", removed))
	return removed, nil
}

func (uc *DocumentUsecase) List(ctx context.Context) (*entity.DocumentListDTO, error) {
	docs, err := uc.documentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	return &entity.DocumentListDTO{Documents: docs, Total: len(docs)}, nil
}

func (uc *DocumentUsecase) Get(ctx context.Context, id string) (*entity.Document, error) {
	return uc.documentRepo.Get(ctx, id)
}

// Stats reports the index counters plus the number of recorded documents.
func (uc *DocumentUsecase) Stats(ctx context.Context) (*entity.VectorStats, error) {
	stats, err := uc.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector stats: %w", err)
	}
	count, err := uc.documentRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	stats.IndexedDocuments = count
	return stats, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func observe(started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GatewayDuration.WithLabelValues("embedding", status).Observe(time.Since(started).Seconds())
}
