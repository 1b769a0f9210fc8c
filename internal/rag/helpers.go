package rag

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/internal/rag/retrieval"
)

func (s *service) jobError(job jobModel.Job, err error, message string, canRetry bool) jobModel.Job {
	s.logger.Error(message, "error", err, "jobId", job.Id)

	if job.Error.Code == 0 {
		job.Error.Code = http.StatusInternalServerError
	}
	if job.Error.Message == "" {
		job.Error.Message = "Internal Server Error"
	}
	job.Error.Retry = canRetry
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

func (s *service) executeEmbeddingStep(ctx context.Context, query string, timing *ragModel.Timing) ([]float32, error) {
	start := time.Now()
	defer func() {
		metrics.CaptureExecutionMetrics("embedding", time.Since(start))
		timing.EmbeddingMs = ragModel.Millis(time.Since(start))
	}()

	vector, cached, err := s.embedder.Embed(ctx, query)
	timing.EmbeddingCached = cached
	return vector, err
}

func (s *service) executeSemanticCacheStep(ctx context.Context, queryVector []float32, documentID string, timing *ragModel.Timing) (*ragModel.SemanticCacheRecord, bool) {
	if s.semanticCache == nil {
		return nil, false
	}
	start := time.Now()
	defer func() {
		metrics.CaptureExecutionMetrics("semantic_cache", time.Since(start))
		timing.SemanticCacheMs = ragModel.Millis(time.Since(start))
	}()

	return s.semanticCache.FindSimilar(ctx, queryVector, documentID, s.opts.SemanticThreshold)
}

func (s *service) executeRetrievalStep(ctx context.Context, req QueryRequest, queryVector []float32, timing *ragModel.Timing) ([]ragModel.RankedResult, error) {
	chunks, rt, err := s.retriever.Retrieve(ctx, retrieval.Request{
		Query:        req.Query,
		DocumentID:   req.DocumentID,
		DocumentName: req.DocumentName,
		TopK:         req.TopK,
		MinScore:     req.MinScore,
		Embedding:    queryVector,
	})
	timing.ChunkCacheMs = rt.ChunkCacheMs
	timing.ChunkCacheHit = rt.ChunkCacheHit
	timing.VectorSearchMs = rt.VectorSearchMs
	timing.BM25SearchMs = rt.BM25SearchMs
	timing.FusionMs = rt.FusionMs
	timing.RetrievalMs = rt.RetrievalMs
	timing.HybridSearch = rt.HybridSearch
	timing.VectorCount = rt.VectorCount
	timing.BM25Count = rt.BM25Count
	timing.ChunksRetrieved = len(chunks)
	return chunks, err
}

func (s *service) executeRerankStep(ctx context.Context, query string, chunks []ragModel.RankedResult, timing *ragModel.Timing) []ragModel.RankedResult {
	start := time.Now()
	topK := s.opts.RerankTopK
	if topK <= 0 {
		topK = len(chunks)
	}
	out := s.reranker.Rerank(ctx, query, chunks, topK)
	timing.RerankMs = ragModel.Millis(time.Since(start))
	timing.ChunksAfterRerank = len(out)
	return out
}

func (s *service) executeResponseCacheStep(ctx context.Context, req QueryRequest, contextHash string, timing *ragModel.Timing) (ragModel.StructuredAnswer, bool) {
	if s.responseCache == nil {
		return ragModel.StructuredAnswer{}, false
	}
	start := time.Now()
	defer func() { timing.ResponseCacheMs = ragModel.Millis(time.Since(start)) }()

	return s.responseCache.GetResponse(ctx, req.Query, req.DocumentID, contextHash)
}

func (s *service) executeLLMStep(ctx context.Context, userMessage string, timing *ragModel.Timing) (string, error) {
	start := time.Now()
	defer func() {
		metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))
		timing.LLMMs = ragModel.Millis(time.Since(start))
	}()

	s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Debug("Calling LLM", "contextChars", len(userMessage))
	raw, err := s.llmProvider.Generate(ctx, systemPrompt, userMessage)
	metrics.RecordLLMCall(err)
	return raw, err
}
