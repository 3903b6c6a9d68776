package document

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
)

type DocumentUsecase interface {
	Normalize(req *entity.IngestDocumentRequest) error
	Ingest(ctx context.Context, req *entity.IngestDocumentRequest) (*entity.IngestDocumentResponse, error)
	PrepareUpload(req *entity.UploadDocumentRequest) (*entity.IngestDocumentRequest, error)
	Delete(ctx context.Context, id string) (int, error)
	List(ctx context.Context) (*entity.DocumentListDTO, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	Stats(ctx context.Context) (*entity.VectorStats, error)
}

type CallbackConnector interface {
	SendError(ctx context.Context, callbackURL, requestID, message string, details map[string]any)
	SendDocumentIndexed(ctx context.Context, callbackURL, requestID string, data *entity.IngestDocumentResponse)
}
