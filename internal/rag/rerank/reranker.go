// Package rerank reorders retrieved chunks with a cross-encoder before generation.
package rerank

import (
	"context"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("Reranker")

// Reranker never fails: any provider problem degrades to the input order cut to topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult
}

type NoOp struct{}

func (NoOp) Rerank(_ context.Context, _ string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult {
	return head(chunks, topK)
}

// New picks the reranker from settings. Disabled, a missing key or an unknown provider all
// give NoOp.
func New(s *config.Settings, client Doer) Reranker {
	if !s.RerankerEnabled {
		logger.Info("Reranking disabled, using no-op reranker")
		return NoOp{}
	}
	switch s.RerankerProvider {
	case "cohere":
		if s.CohereAPIKey == "" {
			logger.Warn("COHERE_API_KEY not set, using no-op reranker")
			return NoOp{}
		}
		return NewCohere(s.CohereAPIKey, config.CohereRerankModel, config.CohereRerankURL, client)
	default:
		logger.Warn("Unknown reranker provider, using no-op reranker", "provider", s.RerankerProvider)
		return NoOp{}
	}
}

// head returns a copy of the first topK chunks. topK <= 0 keeps all of them.
func head(chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult {
	n := len(chunks)
	if topK > 0 && topK < n {
		n = topK
	}
	return append([]ragModel.RankedResult(nil), chunks[:n]...)
}
