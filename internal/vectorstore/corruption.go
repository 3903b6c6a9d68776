// Package vectorstore holds what the vector index implementations share.
package vectorstore

import (
	"context"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ReportCorruption logs a chunk that is excluded from results because its
// record and vector disagree.
func ReportCorruption(ctx context.Context, chunkID, reason string) {
	metrics.IndexCorruption.Inc()
	ctxzap.Warn(ctx, "excluding chunk from results",
		zap.String("chunk_id", chunkID),
		zap.String("reason", reason),
		zap.Error(entity.ErrVectorIndexCorruption),
	)
}
