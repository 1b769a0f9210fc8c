package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the runtime configuration read from the environment (and an optional .env file).
type Settings struct {
	IsProd     bool
	LogLevel   string
	ListenAddr string
	APIKey     string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	QdrantHost    string
	QdrantPort    int

	// retrieval
	HybridSearchEnabled bool
	HybridApplyMinScore bool
	RRFK                int
	RetrievalMinScore   float64
	RetrievalTopK       int
	QueryDefaultTopK    int
	VectorBackend       string

	// reranker
	RerankerEnabled  bool
	RerankerProvider string
	RerankerTopK     int
	CohereAPIKey     string

	// semantic cache
	SemanticCacheThreshold   float64
	SemanticCacheBackend     string
	SemanticCacheRetention   time.Duration
	SemanticCacheCleanupCron string

	// ephemeral cache
	EmbeddingTTL    time.Duration
	ChunksTTL       time.Duration
	ResponseTTL     time.Duration
	HighlightTTL    time.Duration
	EmbeddingLRUCap int

	// providers
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	LLMProvider         string
	LLMModel            string
	LLMMaxTokens        int
	OpenAIAPIKey        string
	AnthropicAPIKey     string
	GeminiAPIKey        string
}

const (
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
)

func Load() *Settings {
	// a missing .env is fine, the process environment wins anyway
	_ = godotenv.Load()

	s := &Settings{
		IsProd:     getEnvBool("IS_PROD", false),
		LogLevel:   getEnv("LOG_LEVEL", "debug"),
		ListenAddr: getEnv("LISTEN_ADDR", ServerListenAddr),
		APIKey:     getEnv("UPLOAD_API_KEY", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", RedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		QdrantHost:    getEnv("QDRANT_HOST", QdrantHost),
		QdrantPort:    getEnvInt("QDRANT_PORT", QdrantGrpcPort),

		HybridSearchEnabled: getEnvBool("HYBRID_SEARCH_ENABLED", true),
		HybridApplyMinScore: getEnvBool("HYBRID_APPLY_MIN_SCORE", false),
		RRFK:                getEnvInt("RRF_K", 60),
		RetrievalMinScore:   getEnvFloat("RETRIEVAL_MIN_SCORE", 0.04),
		RetrievalTopK:       getEnvInt("RETRIEVAL_TOP_K", 20),
		QueryDefaultTopK:    getEnvInt("QUERY_DEFAULT_TOP_K", 15),
		VectorBackend:       strings.ToLower(getEnv("VECTOR_BACKEND", BackendPgvector)),

		RerankerEnabled:  getEnvBool("RERANKER_ENABLED", false),
		RerankerProvider: strings.ToLower(getEnv("RERANKER_PROVIDER", "cohere")),
		RerankerTopK:     getEnvInt("RERANKER_TOP_K", 5),
		CohereAPIKey:     getEnv("COHERE_API_KEY", ""),

		SemanticCacheThreshold:   getEnvFloat("SEMANTIC_CACHE_THRESHOLD", 0.90),
		SemanticCacheBackend:     strings.ToLower(getEnv("SEMANTIC_CACHE_BACKEND", BackendPgvector)),
		SemanticCacheRetention:   getEnvDuration("SEMANTIC_CACHE_RETENTION", 30*24*time.Hour),
		SemanticCacheCleanupCron: getEnv("SEMANTIC_CACHE_CLEANUP_CRON", "@daily"),

		EmbeddingTTL:    getEnvDuration("CACHE_TTL_EMBEDDING", 24*time.Hour),
		ChunksTTL:       getEnvDuration("CACHE_TTL_CHUNKS", time.Hour),
		ResponseTTL:     getEnvDuration("CACHE_TTL_RESPONSE", 30*time.Minute),
		HighlightTTL:    getEnvDuration("HIGHLIGHT_CACHE_TTL", time.Hour),
		EmbeddingLRUCap: getEnvInt("EMBEDDING_LRU_SIZE", EmbeddingLRUSize),

		EmbeddingProvider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", OpenAIEmbeddingModel),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", int(EmbeddingOutputDimensionality)),
		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMMaxTokens:        getEnvInt("LLM_MAX_TOKENS", LLMMaxTokens),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
	}

	if s.LLMModel == "" {
		s.LLMModel = AnthropicModelName
		if s.LLMProvider == "gemini" {
			s.LLMModel = GeminiModelName
		}
	}
	if s.EmbeddingProvider == "google" && s.EmbeddingModel == OpenAIEmbeddingModel {
		s.EmbeddingModel = GoogleEmbeddingModel
	}

	return s
}

// ValidateStorage covers what the maintenance commands need: the database and the cache store.
func (s *Settings) ValidateStorage() error {
	if s.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

// Validate reports configuration errors that must stop the server at startup.
func (s *Settings) Validate() error {
	var errs []error
	if err := s.ValidateStorage(); err != nil {
		errs = append(errs, err)
	}
	if s.APIKey == "" {
		errs = append(errs, errors.New("UPLOAD_API_KEY is required"))
	}
	if s.SemanticCacheThreshold <= 0 || s.SemanticCacheThreshold > 1 {
		errs = append(errs, fmt.Errorf("SEMANTIC_CACHE_THRESHOLD must be in (0,1], got %v", s.SemanticCacheThreshold))
	}
	if s.RRFK <= 0 {
		errs = append(errs, fmt.Errorf("RRF_K must be positive, got %d", s.RRFK))
	}
	if s.RetrievalTopK <= 0 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", s.RetrievalTopK))
	}
	if s.EmbeddingDimensions != int(EmbeddingOutputDimensionality) {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSIONS must be %d to match the vector columns", EmbeddingOutputDimensionality))
	}
	switch s.EmbeddingProvider {
	case "openai":
		if s.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai embedding provider"))
		}
	case "google":
		if s.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the google embedding provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", s.EmbeddingProvider))
	}
	switch s.LLMProvider {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic llm provider"))
		}
	case "gemini":
		if s.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini llm provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", s.LLMProvider))
	}
	for name, backend := range map[string]string{"VECTOR_BACKEND": s.VectorBackend, "SEMANTIC_CACHE_BACKEND": s.SemanticCacheBackend} {
		if backend != BackendPgvector && backend != BackendQdrant {
			errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", name, BackendPgvector, BackendQdrant, backend))
		}
	}
	return errors.Join(errs...)
}

// EffectiveRerankTopK is the top-k handed to the reranker. Zero keeps every retrieved chunk,
// which is what the no-op reranker gets when reranking is off.
func (s *Settings) EffectiveRerankTopK() int {
	if s.RerankerEnabled {
		return s.RerankerTopK
	}
	return 0
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
