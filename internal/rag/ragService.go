package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/ragCache"
	"github.com/akolanti/GoDocRAG/internal/cache/semanticCache"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding"
	"github.com/akolanti/GoDocRAG/internal/rag/ingest"
	"github.com/akolanti/GoDocRAG/internal/rag/llm"
	"github.com/akolanti/GoDocRAG/internal/rag/rerank"
	"github.com/akolanti/GoDocRAG/internal/rag/retrieval"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

/*
Service is the public contract the handlers, the MCP tool and the worker call. The private
service struct holds the clients, so callers never reach the caches or the providers directly
and tests can swap every dependency for a mock.
*/

var (
	ErrEmptyQuery      = errors.New("query must not be empty")
	ErrEmptyDocumentID = errors.New("document id must not be empty")
)

type QueryRequest struct {
	Query        string
	DocumentID   string
	DocumentName string
	TopK         int
	MinScore     *float64
}

// Invalidation counts what a document invalidation removed from each tier.
type Invalidation struct {
	EphemeralKeys int64 `json:"ephemeral_keys"`
	SemanticRows  int64 `json:"semantic_rows"`
}

type Service interface {
	GenerateAnswer(ctx context.Context, req QueryRequest) (ragModel.StructuredAnswer, ragModel.Timing, error)
	InvalidateDocument(ctx context.Context, documentID string) (Invalidation, error)
	ReindexDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

// QueryEmbedder embeds queries through the cache tiers and documents straight through the
// provider. *embedding.CachedEmbedder implements it.
type QueryEmbedder interface {
	embedding.Embedder
	Embed(ctx context.Context, query string) ([]float32, bool, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, ragModel.Timing, error)
}

type ResponseCache interface {
	GetResponse(ctx context.Context, query, documentID, contextHash string) (ragModel.StructuredAnswer, bool)
	SetResponse(ctx context.Context, query, documentID, contextHash string, answer ragModel.StructuredAnswer) error
	InvalidateDocument(ctx context.Context, documentID string) (int64, error)
}

// Dependencies are built once at startup. The caches may be nil.
type Dependencies struct {
	Embedder      QueryEmbedder
	Retriever     Retriever
	Reranker      rerank.Reranker
	LLM           llm.Provider
	SemanticCache semanticCache.Cache
	ResponseCache ResponseCache
	ChunkWriters  []vectorDB.ChunkWriter
}

type Options struct {
	SemanticThreshold float64
	// RerankTopK of zero keeps every retrieved chunk.
	RerankTopK  int
	DefaultTopK int
}

func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		SemanticThreshold: s.SemanticCacheThreshold,
		RerankTopK:        s.EffectiveRerankTopK(),
		DefaultTopK:       s.QueryDefaultTopK,
	}
}

type service struct {
	embedder      QueryEmbedder
	retriever     Retriever
	reranker      rerank.Reranker
	llmProvider   llm.Provider
	semanticCache semanticCache.Cache
	responseCache ResponseCache
	chunkWriters  []vectorDB.ChunkWriter
	opts          Options
	logger        *logger_i.Logger
}

func NewService(deps Dependencies, opts Options) Service {
	reranker := deps.Reranker
	if reranker == nil {
		reranker = rerank.NoOp{}
	}
	return &service{
		embedder:      deps.Embedder,
		retriever:     deps.Retriever,
		reranker:      reranker,
		llmProvider:   deps.LLM,
		semanticCache: deps.SemanticCache,
		responseCache: deps.ResponseCache,
		chunkWriters:  deps.ChunkWriters,
		opts:          opts,
		logger:        logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) GenerateAnswer(ctx context.Context, req QueryRequest) (ragModel.StructuredAnswer, ragModel.Timing, error) {
	start := time.Now()
	var timing ragModel.Timing
	if req.Query == "" {
		return ragModel.StructuredAnswer{}, timing, ErrEmptyQuery
	}
	if req.DocumentID == "" {
		return ragModel.StructuredAnswer{}, timing, ErrEmptyDocumentID
	}
	if req.TopK <= 0 {
		req.TopK = s.opts.DefaultTopK
	}
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", req.DocumentID)

	finish := func(answer ragModel.StructuredAnswer) (ragModel.StructuredAnswer, ragModel.Timing, error) {
		timing.CacheHit = answer.Cached
		timing.TotalMs = ragModel.Millis(time.Since(start))
		metrics.CaptureQueryMetrics(string(answer.Cached), time.Since(start))
		return answer, timing, nil
	}

	// 1. query embedding, shared by the semantic cache and retrieval
	queryVector, err := s.executeEmbeddingStep(ctx, req.Query, &timing)
	if err != nil {
		return ragModel.StructuredAnswer{}, timing, fmt.Errorf("embed query: %w", err)
	}

	// 2. semantic cache
	if cached, ok := s.executeSemanticCacheStep(ctx, queryVector, req.DocumentID, &timing); ok {
		log.Info("Answered from semantic cache", "similarity", cached.Similarity)
		answer := cached.Response
		similarity := cached.Similarity
		answer.Similarity = &similarity
		answer.Cached = ragModel.CacheTierSemantic
		return finish(answer)
	}

	// 3. retrieval
	chunks, err := s.executeRetrievalStep(ctx, req, queryVector, &timing)
	if err != nil {
		return ragModel.StructuredAnswer{}, timing, err
	}
	if len(chunks) == 0 {
		log.Info("No chunks retrieved, skipping generation")
		return finish(ragModel.StructuredAnswer{Response: config.NoInformationAnswer, Sources: []ragModel.Source{}})
	}

	// 4. rerank
	chunks = s.executeRerankStep(ctx, req.Query, chunks, &timing)
	if len(chunks) == 0 {
		log.Warn("Reranker dropped every chunk, skipping generation")
		return finish(ragModel.StructuredAnswer{Response: config.NoInformationAnswer, Sources: []ragModel.Source{}})
	}

	// 5. exact response cache, keyed by the chunk set actually sent to the model
	contextHash := contextHashOf(chunks)
	if cached, ok := s.executeResponseCacheStep(ctx, req, contextHash, &timing); ok {
		log.Info("Answered from response cache")
		cached.Cached = ragModel.CacheTierResponse
		cached.Similarity = nil
		return finish(cached)
	}

	// 6-7. compression and prompt
	compressStart := time.Now()
	compressed := compressChunks(chunks)
	timing.CompressionMs = ragModel.Millis(time.Since(compressStart))
	timing.ChunksCompressed = len(compressed)
	userMessage := buildUserMessage(buildContext(compressed), req.Query)

	// 8. generation
	raw, err := s.executeLLMStep(ctx, userMessage, &timing)
	if err != nil {
		log.Error("Generation failed", "error", err)
		return finish(ragModel.StructuredAnswer{
			Response: "Error generating response: " + err.Error(),
			Sources:  []ragModel.Source{},
		})
	}

	// 9. parse
	parseStart := time.Now()
	answer, stage := parseAnswer(raw)
	timing.ParseMs = ragModel.Millis(time.Since(parseStart))
	timing.ParseStage = stage
	metrics.RecordParseStage(stage)
	if stage != StageDirect {
		log.Warn("Completion needed a fallback parser", "stage", stage)
	}

	// 10. cache writes do not hold up the response
	go s.storeAnswer(ctx, req, queryVector, contextHash, answer)

	return finish(answer)
}

func contextHashOf(chunks []ragModel.RankedResult) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return ragCache.ContextHash(contents)
}

func (s *service) storeAnswer(parent context.Context, req QueryRequest, queryVector []float32, contextHash string, answer ragModel.StructuredAnswer) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), config.CacheWriteTimeout)
	defer cancel()
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", req.DocumentID)

	if s.responseCache != nil {
		if err := s.responseCache.SetResponse(ctx, req.Query, req.DocumentID, contextHash, answer); err != nil {
			log.Warn("Failed to cache response", "error", err)
		}
	}
	if s.semanticCache != nil {
		if err := s.semanticCache.Store(ctx, req.Query, queryVector, req.DocumentID, answer, contextHash); err != nil {
			log.Warn("Failed to store semantic cache entry", "error", err)
		}
	}
}

// InvalidateDocument clears both cache tiers for a document. Both are attempted even when the
// first fails.
func (s *service) InvalidateDocument(ctx context.Context, documentID string) (Invalidation, error) {
	if documentID == "" {
		return Invalidation{}, ErrEmptyDocumentID
	}
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentID)

	var result Invalidation
	var errs []error
	if s.responseCache != nil {
		n, err := s.responseCache.InvalidateDocument(ctx, documentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("ephemeral cache: %w", err))
		}
		result.EphemeralKeys = n
		metrics.RecordInvalidation(metrics.CacheResponse, n)
	}
	if s.semanticCache != nil {
		n, err := s.semanticCache.InvalidateDocument(ctx, documentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("semantic cache: %w", err))
		}
		result.SemanticRows = n
		metrics.RecordInvalidation(metrics.CacheSemantic, n)
	}
	log.Info("Invalidated document caches", "ephemeralKeys", result.EphemeralKeys, "semanticRows", result.SemanticRows)
	return result, errors.Join(errs...)
}

func (s *service) ReindexDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	invalidate := func(ctx context.Context, documentID string) (int64, int64, error) {
		inv, err := s.InvalidateDocument(ctx, documentID)
		return inv.EphemeralKeys, inv.SemanticRows, err
	}
	job = ingest.ProcessReindex(ctx, job, s.embedder, s.chunkWriters, invalidate)
	if job.Status != jobModel.JobStatusComplete {
		return s.jobError(job, errors.New(job.Error.Message), "REINDEX_FAILURE", job.Error.Retry)
	}
	return job
}
