package chunkstore

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
)

const writeBatch = 100

type hashWriter interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// Writer stores embedded chunks as hashes, in pipelined batches.
type Writer struct {
	store hashWriter
}

// NewWriter creates a chunk writer over a hash store.
func NewWriter(s hashWriter) *Writer {
	return &Writer{store: s}
}

// WriteChunks stores chunks. A failed batch aborts the rest.
func (w *Writer) WriteChunks(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	for start := 0; start < len(chunks); start += writeBatch {
		end := min(start+writeBatch, len(chunks))
		items := make([]db.HashSetItem, 0, end-start)
		for i := start; i < end; i++ {
			item, err := ToHash(&chunks[i])
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if err := w.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("write chunks [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}
