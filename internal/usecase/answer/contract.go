package answer

import (
	"context"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

// Retriever returns the fused chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]domain.RetrievedChunk, error)
}

// AnswerCache stores generated answers per query and language.
type AnswerCache interface {
	GetAnswer(ctx context.Context, query string, lang language.Language) (cache.CachedAnswer, bool)
	StoreAnswer(ctx context.Context, query string, lang language.Language, answer string, citations []domain.Citation)
}
