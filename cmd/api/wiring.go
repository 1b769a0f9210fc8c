package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/GoDocRAG/internal/cache/ragCache"
	"github.com/akolanti/GoDocRAG/internal/cache/semanticCache"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/customHttpClient"
	"github.com/akolanti/GoDocRAG/internal/data/postgresStore"
	"github.com/akolanti/GoDocRAG/internal/data/redisStore"
	"github.com/akolanti/GoDocRAG/internal/data/store"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/handlers"
	"github.com/akolanti/GoDocRAG/internal/highlight"
	"github.com/akolanti/GoDocRAG/internal/rag"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/GoDocRAG/internal/rag/llm"
	"github.com/akolanti/GoDocRAG/internal/rag/llm/anthropicLLM"
	"github.com/akolanti/GoDocRAG/internal/rag/llm/gemini"
	"github.com/akolanti/GoDocRAG/internal/rag/rerank"
	"github.com/akolanti/GoDocRAG/internal/rag/retrieval"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB/pgvectorDB"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/jmoiron/sqlx"
)

var errRedisOffline = errors.New("redis is offline")

// storage holds the shared handles. redis and the cache built on it are nil when Redis is
// unreachable, which leaves the pipeline running uncached.
type storage struct {
	settings      *config.Settings
	db            *sqlx.DB
	redis         *redisStore.Store
	cache         *ragCache.Store
	qdrant        *qdrantDB.ClientHolder
	semanticCache semanticCache.Cache
	logger        *logger_i.Logger
}

func openStorage(ctx context.Context, s *config.Settings) (*storage, error) {
	st := &storage{settings: s, logger: logger_i.NewLogger("wiring")}

	db, err := postgresStore.Connect(ctx, s.DatabaseURL)
	if err != nil {
		return nil, err
	}
	st.db = db

	if st.redis = redisStore.GetRedisStore(ctx, redisOptions(s), config.RedisRAGCache); st.redis != nil {
		st.cache = ragCache.New(st.redis, ragCache.TTLs{
			Embedding: s.EmbeddingTTL,
			Chunks:    s.ChunksTTL,
			Response:  s.ResponseTTL,
		})
	} else {
		st.logger.Warn("Redis is offline, ephemeral caching disabled")
	}

	if s.VectorBackend == config.BackendQdrant || s.SemanticCacheBackend == config.BackendQdrant {
		st.qdrant = qdrantDB.GetQuadrantClient(ctx, s.QdrantHost, s.QdrantPort)
		if st.qdrant == nil {
			_ = db.Close()
			return nil, fmt.Errorf("qdrant at %s:%d is unreachable", s.QdrantHost, s.QdrantPort)
		}
	}

	if s.SemanticCacheBackend == config.BackendQdrant {
		st.semanticCache = qdrantDB.NewSemanticCache(st.qdrant)
	} else {
		st.semanticCache = semanticCache.NewPgCache(db)
	}
	return st, nil
}

// the accessors below keep a nil *ragCache.Store from turning into a non-nil interface

func (st *storage) responseCache() rag.ResponseCache {
	if st.cache == nil {
		return nil
	}
	return st.cache
}

func (st *storage) chunkCache() retrieval.ChunkCache {
	if st.cache == nil {
		return nil
	}
	return st.cache
}

func (st *storage) embeddingCache() embedding.RemoteCache {
	if st.cache == nil {
		return nil
	}
	return st.cache
}

func (st *storage) highlightCache() highlight.Cache {
	if st.cache == nil {
		return nil
	}
	return st.cache
}

func redisOptions(s *config.Settings) redisStore.Options {
	return redisStore.Options{Addr: s.RedisAddr, Password: s.RedisPassword, PoolSize: config.RedisPoolSize}
}

func (st *storage) jobStore(ctx context.Context) jobModel.JobStore {
	if js := store.GetRedisJobStore(ctx, redisOptions(st.settings)); js != nil {
		return js
	}
	if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		return nil
	}
	st.logger.Error("Redis job store is offline, falling back to memory")
	return store.InitInMemoryJobStore()
}

func (st *storage) healthChecks() map[string]handlers.PingFunc {
	return map[string]handlers.PingFunc{
		"postgres": st.db.PingContext,
		"redis": func(ctx context.Context) error {
			if st.redis == nil {
				return errRedisOffline
			}
			return st.redis.Ping(ctx)
		},
	}
}

func buildEmbedder(ctx context.Context, s *config.Settings) (embedding.Embedder, error) {
	switch s.EmbeddingProvider {
	case "google":
		e := googleEmbedding.GetGoogleEmbeddingClient(ctx, s.EmbeddingModel, s.GeminiAPIKey)
		if e == nil {
			return nil, errors.New("google embedding client failed to initialize")
		}
		return e, nil
	default:
		return openaiEmbedding.New(s.OpenAIAPIKey, s.EmbeddingModel, customHttpClient.GetLongRunningClient()), nil
	}
}

func buildLLM(ctx context.Context, s *config.Settings) (llm.Provider, error) {
	switch s.LLMProvider {
	case "gemini":
		p := gemini.GetGeminiClient(ctx, s.LLMModel, s.GeminiAPIKey, s.LLMMaxTokens)
		if p == nil {
			return nil, errors.New("gemini client failed to initialize")
		}
		return p, nil
	default:
		return anthropicLLM.New(s.AnthropicAPIKey, s.LLMModel, s.LLMMaxTokens, customHttpClient.GetLongRunningClient()), nil
	}
}

func buildRAGService(ctx context.Context, s *config.Settings, st *storage) (rag.Service, error) {
	inner, err := buildEmbedder(ctx, s)
	if err != nil {
		return nil, err
	}
	provider, err := buildLLM(ctx, s)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewCachedEmbedder(inner, st.embeddingCache(), s.EmbeddingLRUCap, s.EmbeddingTTL)

	//postgres always serves full-text search and keeps the chunk rows
	chunkStore := pgvectorDB.NewChunkStore(st.db)
	var vector vectorDB.VectorSearcher = chunkStore
	writers := []vectorDB.ChunkWriter{chunkStore}
	if s.VectorBackend == config.BackendQdrant {
		index := qdrantDB.NewChunkIndex(st.qdrant)
		vector = index
		writers = append(writers, index)
	}

	engine := retrieval.NewEngine(embedder, vector, chunkStore, st.chunkCache(), retrieval.OptionsFromSettings(s))

	return rag.NewService(rag.Dependencies{
		Embedder:      embedder,
		Retriever:     engine,
		Reranker:      rerank.New(s, customHttpClient.GetPooledClient()),
		LLM:           provider,
		SemanticCache: st.semanticCache,
		ResponseCache: st.responseCache(),
		ChunkWriters:  writers,
	}, rag.OptionsFromSettings(s)), nil
}

func buildHighlightRenderer(s *config.Settings, st *storage) *highlight.Renderer {
	return highlight.NewRenderer(customHttpClient.GetPooledClient(), st.highlightCache(), highlight.NewPdfcpuOpener(), s.HighlightTTL)
}
