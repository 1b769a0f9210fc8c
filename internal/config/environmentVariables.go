package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, the job store falls back to an in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 5
	BURST_RATE_LIMIT_PER_SECOND     = 10
	API_KEY_HEADER                  = "X-API-KEY"

	EmbeddingOutputDimensionality int32 = 1536
	ChunkCollectionName                 = "document-chunks"
	SemanticCacheCollectionName         = "semantic-cache"

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 4
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	ReindexJobTimeout               = 10 * time.Minute

	//serverTimeouts, queries wait on the LLM so writes get a long budget
	ReadTimeout            = 10 * time.Second
	WriteTimeout           = 120 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second
	QueryTimeout           = 110 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//vectorDB
	QdrantHost     = "localhost"
	QdrantGrpcPort = 6334
	QdrantUseTLS   = false //set for https
	QdrantPoolSize = 2

	//postgres pool
	PostgresMaxOpenConns    = 25
	PostgresMaxIdleConns    = 5
	PostgresConnMaxLifetime = 5 * time.Minute

	//llm
	AnthropicModelName = "claude-sonnet-4-5"
	GeminiModelName    = "gemini-2.5-flash"
	LLMMaxTokens       = 2048
	ModelTemperature   = 0.1

	//embeddings
	OpenAIEmbeddingModel = "text-embedding-3-small"
	GoogleEmbeddingModel = "gemini-embedding-001"
	EmbeddingBatchSize   = 100
	EmbeddingLRUSize     = 2048

	//reranker
	CohereRerankURL   = "https://api.cohere.com/v2/rerank"
	CohereRerankModel = "rerank-english-v3.0"

	//generation
	CompressedChunkMaxChars = 2000
	RawAnswerMaxChars       = 3000
	NoInformationAnswer     = "The provided documents do not contain this information."
	UnparsableAnswer        = "Unable to parse response from AI."

	//background cache writes detach from the request, bounded by this
	CacheWriteTimeout = 10 * time.Second

	//http client pool
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second
	HTTPClientTimeout   = 30 * time.Second

	//ingest chunking
	ChunkSize    = 1000
	ChunkOverlap = 150

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore = 0
	RedisRAGCache = 1

	RedisPoolSize = 20

	//redis timeouts
	RedisJobStoreTTL = 24 * time.Hour
)
