// Package semanticCache persists generated answers keyed by query embedding so paraphrased
// questions about the same document can be answered without retrieval or generation.
package semanticCache

import (
	"context"
	"time"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

// Cache is implemented by the pgvector table here and by the Qdrant collection in qdrantDB.
//
// FindSimilar returns the closest record for the document whose cosine similarity reaches
// threshold. Lookup failures are logged and reported as a miss. A hit bumps hit_count and
// last_accessed_at in the background.
type Cache interface {
	FindSimilar(ctx context.Context, embedding []float32, documentID string, threshold float64) (*ragModel.SemanticCacheRecord, bool)
	Store(ctx context.Context, queryText string, embedding []float32, documentID string, answer ragModel.StructuredAnswer, contextHash string) error
	InvalidateDocument(ctx context.Context, documentID string) (int64, error)
	PruneStale(ctx context.Context, notAccessedSince time.Time) (int64, error)
}

// StoredAnswer strips per-request fields before an answer is persisted.
func StoredAnswer(answer ragModel.StructuredAnswer) ragModel.StructuredAnswer {
	answer.Similarity = nil
	answer.Cached = ragModel.CacheTierNone
	if answer.Sources == nil {
		answer.Sources = []ragModel.Source{}
	}
	return answer
}
