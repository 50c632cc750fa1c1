package ingest

import (
	"context"

	"github.com/kailas-cloud/lexrag/internal/domain"
)

// ChunkWriter persists embedded chunks.
type ChunkWriter interface {
	WriteChunks(ctx context.Context, chunks []domain.EmbeddedChunk) error
}
