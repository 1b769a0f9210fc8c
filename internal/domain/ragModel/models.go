package ragModel

import (
	"time"
)

// BBox is [x0, y0, x1, y1] in page points with a top-left origin.
type BBox [4]float64

type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// CacheTier names the cache that served an answer. Empty means it was generated.
type CacheTier string

const (
	CacheTierNone     CacheTier = ""
	CacheTierSemantic CacheTier = "semantic"
	CacheTierResponse CacheTier = "response"
)

// Chunk is one retrieved passage of a document.
type Chunk struct {
	ID      string  `json:"id,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Page    int     `json:"page"`
	Section string  `json:"section,omitempty"`
	BBoxes  []BBox  `json:"bboxes,omitempty"`
	Title   string  `json:"title"`
}

// RankedResult carries the per-list votes that produced a fused rank. A zero rank means the
// chunk did not appear in that list.
type RankedResult struct {
	Chunk
	VectorRank  int     `json:"vector_rank,omitempty"`
	BM25Rank    int     `json:"bm25_rank,omitempty"`
	VectorScore float64 `json:"vector_score,omitempty"`
	BM25Score   float64 `json:"bm25_score,omitempty"`
	RRFScore    float64 `json:"rrf_score,omitempty"`
}

// CompressedChunk is every retrieved chunk of one (title, page) merged into a single context unit.
type CompressedChunk struct {
	Title       string `json:"title"`
	Page        int    `json:"page"`
	Section     string `json:"section,omitempty"`
	Content     string `json:"content"`
	BBoxes      []BBox `json:"bboxes"`
	MergedCount int    `json:"merged_count"`
}

type Source struct {
	Name      string    `json:"name"`
	Page      int       `json:"page"`
	Section   string    `json:"section,omitempty"`
	ExactText string    `json:"exactText"`
	BBoxes    []BBox    `json:"bboxes"`
	Relevance Relevance `json:"relevance"`
}

type StructuredAnswer struct {
	Response   string    `json:"response"`
	Sources    []Source  `json:"sources"`
	Similarity *float64  `json:"similarity,omitempty"`
	Cached     CacheTier `json:"cached,omitempty"`
}

// SemanticCacheRecord is one persisted answer, matched later by embedding similarity.
type SemanticCacheRecord struct {
	ID             string
	QueryText      string
	DocumentID     string
	Response       StructuredAnswer
	ContextHash    string
	HitCount       int
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Similarity     float64
}

// Timing is the per-stage latency breakdown of one query, in milliseconds.
type Timing struct {
	EmbeddingMs     float64 `json:"embedding_ms"`
	SemanticCacheMs float64 `json:"semantic_cache_ms"`
	ChunkCacheMs    float64 `json:"chunk_cache_ms,omitempty"`
	VectorSearchMs  float64 `json:"vector_search_ms,omitempty"`
	BM25SearchMs    float64 `json:"bm25_search_ms,omitempty"`
	FusionMs        float64 `json:"fusion_ms,omitempty"`
	RetrievalMs     float64 `json:"retrieval_ms"`
	RerankMs        float64 `json:"rerank_ms,omitempty"`
	ResponseCacheMs float64 `json:"response_cache_ms,omitempty"`
	CompressionMs   float64 `json:"compression_ms,omitempty"`
	LLMMs           float64 `json:"llm_ms,omitempty"`
	ParseMs         float64 `json:"parse_ms,omitempty"`
	TotalMs         float64 `json:"total_ms"`

	CacheHit          CacheTier `json:"cache_hit,omitempty"`
	ChunkCacheHit     bool      `json:"chunk_cache_hit"`
	EmbeddingCached   bool      `json:"embedding_cached"`
	HybridSearch      bool      `json:"hybrid_search"`
	VectorCount       int       `json:"vector_count,omitempty"`
	BM25Count         int       `json:"bm25_count,omitempty"`
	ChunksRetrieved   int       `json:"chunks_retrieved"`
	ChunksAfterRerank int       `json:"chunks_after_rerank,omitempty"`
	ChunksCompressed  int       `json:"chunks_compressed,omitempty"`
	ParseStage        string    `json:"parse_stage,omitempty"`
}

// Millis converts a duration to fractional milliseconds for Timing fields.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
