// Package retrieval finds the chunks of one document that answer a query, combining vector
// similarity and full-text ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var ErrSearchFailed = errors.New("chunk search failed")

// QueryEmbedder reports whether the vector came from a cache.
type QueryEmbedder interface {
	Embed(ctx context.Context, query string) ([]float32, bool, error)
}

type ChunkCache interface {
	GetChunks(ctx context.Context, query, documentID string) ([]ragModel.RankedResult, bool)
	SetChunks(ctx context.Context, query, documentID string, chunks []ragModel.RankedResult) error
}

type Options struct {
	Hybrid bool
	// ApplyMinScoreInHybrid filters fused results by MinScore. RRF scores are far below cosine
	// similarities so this is off by default.
	ApplyMinScoreInHybrid bool
	RRFK                  int
	DefaultTopK           int
	DefaultMinScore       float64
}

func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		Hybrid:                s.HybridSearchEnabled,
		ApplyMinScoreInHybrid: s.HybridApplyMinScore,
		RRFK:                  s.RRFK,
		DefaultTopK:           s.RetrievalTopK,
		DefaultMinScore:       s.RetrievalMinScore,
	}
}

type Request struct {
	Query        string
	DocumentID   string
	DocumentName string
	TopK         int
	// MinScore is a pointer so an explicit zero is not replaced by the default.
	MinScore *float64
	// Embedding skips the embedding step when set.
	Embedding []float32
}

type Engine struct {
	embedder QueryEmbedder
	vector   vectorDB.VectorSearcher
	lexical  vectorDB.LexicalSearcher
	cache    ChunkCache
	opts     Options
	logger   *logger_i.Logger
}

// NewEngine wires the searches. cache may be nil.
func NewEngine(embedder QueryEmbedder, vector vectorDB.VectorSearcher, lexical vectorDB.LexicalSearcher, cache ChunkCache, opts Options) *Engine {
	if opts.RRFK <= 0 {
		opts.RRFK = DefaultRRFK
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 20
	}
	return &Engine{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		cache:    cache,
		opts:     opts,
		logger:   logger_i.NewLogger("Retrieval"),
	}
}

func (e *Engine) Retrieve(ctx context.Context, req Request) ([]ragModel.RankedResult, ragModel.Timing, error) {
	start := time.Now()
	var timing ragModel.Timing
	log := e.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", req.DocumentID)

	topK := req.TopK
	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}
	minScore := e.opts.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	if e.cache != nil {
		cacheStart := time.Now()
		cached, ok := e.cache.GetChunks(ctx, req.Query, req.DocumentID)
		timing.ChunkCacheMs = ragModel.Millis(time.Since(cacheStart))
		if ok {
			timing.ChunkCacheHit = true
			timing.ChunksRetrieved = len(cached)
			timing.RetrievalMs = ragModel.Millis(time.Since(start))
			log.Info("Chunk cache hit", "chunks", len(cached))
			return cached, timing, nil
		}
	}

	embedding := req.Embedding
	if embedding == nil {
		embedStart := time.Now()
		var err error
		embedding, timing.EmbeddingCached, err = e.embedder.Embed(ctx, req.Query)
		timing.EmbeddingMs = ragModel.Millis(time.Since(embedStart))
		if err != nil {
			return nil, timing, fmt.Errorf("embed query: %w", err)
		}
	}

	var results []ragModel.RankedResult
	if e.opts.Hybrid {
		var err error
		results, err = e.hybrid(ctx, req, embedding, topK, &timing)
		if err != nil {
			return nil, timing, err
		}
		if e.opts.ApplyMinScoreInHybrid {
			results = filterByScore(results, minScore)
		}
	} else {
		searchStart := time.Now()
		vector, err := e.vector.VectorSearch(ctx, embedding, req.DocumentID, req.DocumentName, topK)
		timing.VectorSearchMs = ragModel.Millis(time.Since(searchStart))
		if err != nil {
			return nil, timing, fmt.Errorf("%w: vector: %w", ErrSearchFailed, err)
		}
		timing.VectorCount = len(vector)
		results = rankVectorOnly(vector, minScore)
	}
	if len(results) > topK {
		results = results[:topK]
	}

	timing.ChunksRetrieved = len(results)
	timing.RetrievalMs = ragModel.Millis(time.Since(start))
	metrics.CaptureExecutionMetrics("retrieval", time.Since(start))
	log.Info("Retrieved chunks", "hybrid", e.opts.Hybrid, "chunks", len(results), "vector", timing.VectorCount, "bm25", timing.BM25Count)

	if e.cache != nil && len(results) > 0 {
		go e.storeChunks(ctx, req, append([]ragModel.RankedResult(nil), results...))
	}
	return results, timing, nil
}

// hybrid runs both searches concurrently. Either failing cancels the other and fails the request,
// so a query is never answered from one list without it being visible.
func (e *Engine) hybrid(ctx context.Context, req Request, embedding []float32, topK int, timing *ragModel.Timing) ([]ragModel.RankedResult, error) {
	timing.HybridSearch = true
	var vector, lexical []ragModel.Chunk
	var vectorTook, lexicalTook time.Duration

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		res, err := e.vector.VectorSearch(gctx, embedding, req.DocumentID, req.DocumentName, topK)
		vectorTook = time.Since(t)
		if err != nil {
			return fmt.Errorf("%w: vector: %w", ErrSearchFailed, err)
		}
		vector = res
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		res, err := e.lexical.LexicalSearch(gctx, req.Query, req.DocumentID, req.DocumentName, topK)
		lexicalTook = time.Since(t)
		if err != nil {
			return fmt.Errorf("%w: bm25: %w", ErrSearchFailed, err)
		}
		lexical = res
		return nil
	})
	err := g.Wait()
	timing.VectorSearchMs = ragModel.Millis(vectorTook)
	timing.BM25SearchMs = ragModel.Millis(lexicalTook)
	metrics.CaptureExecutionMetrics("vector_search", vectorTook)
	metrics.CaptureExecutionMetrics("bm25_search", lexicalTook)
	if err != nil {
		return nil, err
	}

	timing.VectorCount = len(vector)
	timing.BM25Count = len(lexical)
	fuseStart := time.Now()
	fused := FuseRRF(vector, lexical, e.opts.RRFK)
	timing.FusionMs = ragModel.Millis(time.Since(fuseStart))
	return fused, nil
}

func (e *Engine) storeChunks(parent context.Context, req Request, results []ragModel.RankedResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), config.CacheWriteTimeout)
	defer cancel()
	if err := e.cache.SetChunks(ctx, req.Query, req.DocumentID, results); err != nil {
		e.logger.Warn("Failed to cache chunks", "documentId", req.DocumentID, "error", err)
	}
}

func filterByScore(results []ragModel.RankedResult, minScore float64) []ragModel.RankedResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}
