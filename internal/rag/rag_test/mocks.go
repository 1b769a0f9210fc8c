package rag_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/semanticCache"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/rag/retrieval"
)

// MockEmbedder implements rag.QueryEmbedder
type MockEmbedder struct {
	OnEmbed          func(ctx context.Context, query string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
	EmbedCalls       atomic.Int32
}

func (m *MockEmbedder) Embed(ctx context.Context, query string) ([]float32, bool, error) {
	m.EmbedCalls.Add(1)
	if m.OnEmbed != nil {
		v, err := m.OnEmbed(ctx, query)
		return v, false, err
	}
	return []float32{1, 0}, false, nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	v, _, err := m.Embed(ctx, query)
	return v, err
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	// Return dummy vectors matching chunk size
	return make([][]float32, len(chunks)), nil
}

func (m *MockEmbedder) ModelName() string { return "mock-embedding" }

// MockRetriever implements rag.Retriever
type MockRetriever struct {
	OnRetrieve func(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, error)
	Calls      atomic.Int32
}

func (m *MockRetriever) Retrieve(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, ragModel.Timing, error) {
	m.Calls.Add(1)
	timing := ragModel.Timing{RetrievalMs: 1, HybridSearch: true}
	if m.OnRetrieve != nil {
		chunks, err := m.OnRetrieve(ctx, req)
		return chunks, timing, err
	}
	return []ragModel.RankedResult{{Chunk: ragModel.Chunk{ID: "c1", Title: "Manual", Page: 3, Content: "Prime the pump before use."}}}, timing, nil
}

// MockReranker implements rerank.Reranker
type MockReranker struct {
	OnRerank func(ctx context.Context, query string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult
	LastTopK int
}

func (m *MockReranker) Rerank(ctx context.Context, query string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult {
	m.LastTopK = topK
	if m.OnRerank != nil {
		return m.OnRerank(ctx, query, chunks, topK)
	}
	return chunks
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Calls      atomic.Int32
}

func (m *MockLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.Calls.Add(1)
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, systemPrompt, userPrompt)
	}
	return `{"response":"Prime the pump (Manual, p. 3)","sources":[{"name":"Manual","page":3,"exactText":"Prime the pump","bboxes":[[1,2,3,4]],"relevance":"high"}]}`, nil
}

// MemorySemanticCache implements semanticCache.Cache with an in-memory cosine scan.
type MemorySemanticCache struct {
	mu      sync.Mutex
	records []memoryRecord
	Stored  chan struct{}
}

type memoryRecord struct {
	ragModel.SemanticCacheRecord
	embedding []float32
}

var _ semanticCache.Cache = (*MemorySemanticCache)(nil)

func NewMemorySemanticCache() *MemorySemanticCache {
	return &MemorySemanticCache{Stored: make(chan struct{}, 16)}
}

func (m *MemorySemanticCache) FindSimilar(ctx context.Context, embedding []float32, documentID string, threshold float64) (*ragModel.SemanticCacheRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *ragModel.SemanticCacheRecord
	for _, r := range m.records {
		if r.DocumentID != documentID {
			continue
		}
		sim := cosine(embedding, r.embedding)
		if sim >= threshold && (best == nil || sim > best.Similarity) {
			rec := r.SemanticCacheRecord
			rec.Similarity = sim
			best = &rec
		}
	}
	return best, best != nil
}

func (m *MemorySemanticCache) Store(ctx context.Context, queryText string, embedding []float32, documentID string, answer ragModel.StructuredAnswer, contextHash string) error {
	m.mu.Lock()
	m.records = append(m.records, memoryRecord{
		SemanticCacheRecord: ragModel.SemanticCacheRecord{
			QueryText:   queryText,
			DocumentID:  documentID,
			Response:    semanticCache.StoredAnswer(answer),
			ContextHash: contextHash,
			CreatedAt:   time.Now(),
		},
		embedding: embedding,
	})
	m.mu.Unlock()
	m.Stored <- struct{}{}
	return nil
}

func (m *MemorySemanticCache) InvalidateDocument(ctx context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var removed int64
	for _, r := range m.records {
		if r.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func (m *MemorySemanticCache) PruneStale(ctx context.Context, notAccessedSince time.Time) (int64, error) {
	return 0, nil
}

func (m *MemorySemanticCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MockChunkWriter implements vectorDB.ChunkWriter
type MockChunkWriter struct {
	OnReplace func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error
}

func (m *MockChunkWriter) ReplaceDocumentChunks(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if m.OnReplace != nil {
		return m.OnReplace(ctx, doc, chunks, vectors)
	}
	return nil
}

func (m *MockChunkWriter) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	return nil
}
