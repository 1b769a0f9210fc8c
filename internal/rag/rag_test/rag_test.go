package rag_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/ragCache"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/data/redisStore"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/rag"
	"github.com/akolanti/GoDocRAG/internal/rag/retrieval"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docID        = "doc-1"
	coldQuery    = "how do I prime the pump?"
	paraphrase   = "what is the priming procedure?"
	offTopic     = "what colour is the housing?"
	chunkContent = "Prime the pump before use."
)

type harness struct {
	embedder  *MockEmbedder
	retriever *MockRetriever
	reranker  *MockReranker
	llm       *MockLLM
	semantic  *MemorySemanticCache
	responses *ragCache.Store
	writer    *MockChunkWriter
	svc       rag.Service
}

func newHarness(t *testing.T, withSemantic bool) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		embedder:  &MockEmbedder{OnEmbed: unitVectors},
		retriever: &MockRetriever{},
		reranker:  &MockReranker{},
		llm:       &MockLLM{},
		responses: ragCache.New(redisStore.NewTestStore(client), ragCache.DefaultTTLs()),
		writer:    &MockChunkWriter{},
	}
	deps := rag.Dependencies{
		Embedder:      h.embedder,
		Retriever:     h.retriever,
		Reranker:      h.reranker,
		LLM:           h.llm,
		ResponseCache: h.responses,
		ChunkWriters:  []vectorDB.ChunkWriter{h.writer},
	}
	if withSemantic {
		h.semantic = NewMemorySemanticCache()
		deps.SemanticCache = h.semantic
	}
	h.svc = rag.NewService(deps, rag.Options{SemanticThreshold: 0.90, RerankTopK: 5, DefaultTopK: 15})
	return h
}

// unitVectors places the paraphrase at cosine 0.93 and the off-topic question at 0.85 from the
// cold query.
func unitVectors(ctx context.Context, query string) ([]float32, error) {
	at := func(cos float64) []float32 { return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))} }
	switch query {
	case paraphrase:
		return at(0.93), nil
	case offTopic:
		return at(0.85), nil
	default:
		return []float32{1, 0}, nil
	}
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func ask(t *testing.T, h *harness, query string) (ragModel.StructuredAnswer, ragModel.Timing) {
	t.Helper()
	answer, timing, err := h.svc.GenerateAnswer(testCtx(), rag.QueryRequest{Query: query, DocumentID: docID, DocumentName: "Manual"})
	require.NoError(t, err)
	return answer, timing
}

// waitForCacheWrites blocks until the background writer has finished with one answer.
func waitForCacheWrites(t *testing.T, h *harness, query string) {
	t.Helper()
	if h.semantic != nil {
		select {
		case <-h.semantic.Stored:
		case <-time.After(2 * time.Second):
			t.Fatal("semantic cache was never written")
		}
		return
	}
	hash := ragCache.ContextHash([]string{chunkContent})
	require.Eventually(t, func() bool {
		_, ok := h.responses.GetResponse(testCtx(), query, docID, hash)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGenerateAnswer_ColdQuery(t *testing.T) {
	h := newHarness(t, true)
	h.llm.OnGenerate = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		assert.Contains(t, systemPrompt, "valid JSON")
		assert.Equal(t, "CONTEXT:\n[Manual|p3|bbox:[]]\n"+chunkContent+"\n\nQUESTION: "+coldQuery, userPrompt)
		return `{"response":"Prime it first (Manual, p. 3)","sources":[{"name":"Manual","page":3,"bboxes":[1,2,3,4]}]}`, nil
	}

	answer, timing := ask(t, h, coldQuery)

	assert.Equal(t, "Prime it first (Manual, p. 3)", answer.Response)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, []ragModel.BBox{{1, 2, 3, 4}}, answer.Sources[0].BBoxes)
	assert.Equal(t, ragModel.CacheTierNone, answer.Cached)
	assert.Nil(t, answer.Similarity)

	assert.Equal(t, "direct", timing.ParseStage)
	assert.Equal(t, 1, timing.ChunksRetrieved)
	assert.Equal(t, 1, timing.ChunksCompressed)
	assert.True(t, timing.HybridSearch)
	assert.Equal(t, 5, h.reranker.LastTopK)
	assert.EqualValues(t, 1, h.llm.Calls.Load())

	waitForCacheWrites(t, h, coldQuery)
	assert.Equal(t, 1, h.semantic.Len())
	_, ok := h.responses.GetResponse(testCtx(), coldQuery, docID, ragCache.ContextHash([]string{chunkContent}))
	assert.True(t, ok, "response cache should hold the generated answer")
}

func TestGenerateAnswer_ExactRepeatServedBySemanticCache(t *testing.T) {
	h := newHarness(t, true)
	first, _ := ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	second, timing := ask(t, h, coldQuery)

	assert.Equal(t, ragModel.CacheTierSemantic, second.Cached)
	require.NotNil(t, second.Similarity)
	assert.InDelta(t, 1.0, *second.Similarity, 1e-6)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, ragModel.CacheTierSemantic, timing.CacheHit)
	assert.EqualValues(t, 1, h.retriever.Calls.Load(), "a semantic hit skips retrieval")
	assert.EqualValues(t, 1, h.llm.Calls.Load())
}

func TestGenerateAnswer_ExactRepeatServedByResponseCache(t *testing.T) {
	h := newHarness(t, false)
	first, _ := ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	second, _ := ask(t, h, coldQuery)

	assert.Equal(t, ragModel.CacheTierResponse, second.Cached)
	assert.Nil(t, second.Similarity)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, first.Sources, second.Sources)
	assert.EqualValues(t, 2, h.retriever.Calls.Load())
	assert.EqualValues(t, 1, h.llm.Calls.Load(), "the response cache sits in front of the LLM")
}

func TestGenerateAnswer_Paraphrase(t *testing.T) {
	h := newHarness(t, true)
	ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	answer, _ := ask(t, h, paraphrase)
	assert.Equal(t, ragModel.CacheTierSemantic, answer.Cached)
	require.NotNil(t, answer.Similarity)
	assert.InDelta(t, 0.93, *answer.Similarity, 1e-3)
	assert.EqualValues(t, 1, h.llm.Calls.Load())

	miss, _ := ask(t, h, offTopic)
	assert.Equal(t, ragModel.CacheTierNone, miss.Cached)
	assert.EqualValues(t, 2, h.llm.Calls.Load(), "0.85 is under the threshold")
}

func TestGenerateAnswer_ReIngestion(t *testing.T) {
	h := newHarness(t, true)
	ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	path := filepath.Join(t.TempDir(), "manual.txt")
	require.NoError(t, os.WriteFile(path, []byte("Revised: prime the pump twice."), 0o600))
	var written int
	h.writer.OnReplace = func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
		written = len(chunks)
		return nil
	}

	job := h.svc.ReindexDocument(testCtx(), jobModel.Job{Id: "job-1", JobPayload: jobModel.JobPayload{
		DocumentID: docID, DocumentName: "Manual", IngestPath: path,
	}})
	require.Equal(t, jobModel.JobStatusComplete, job.Status, "job error: %+v", job.Error)
	assert.Equal(t, 1, written)
	assert.EqualValues(t, 1, job.JobPayload.InvalidatedCachedRows)
	assert.GreaterOrEqual(t, job.JobPayload.InvalidatedCacheKeys, int64(1))
	assert.Equal(t, 0, h.semantic.Len())

	// same chunk set as before, so only the invalidation can force a new generation
	answer, _ := ask(t, h, coldQuery)
	assert.Equal(t, ragModel.CacheTierNone, answer.Cached)
	assert.EqualValues(t, 2, h.llm.Calls.Load(), "stale answers must not survive a reindex")
}

func TestGenerateAnswer_ReIngestionClearsResponseCache(t *testing.T) {
	h := newHarness(t, false)
	ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	repeat, _ := ask(t, h, coldQuery)
	require.Equal(t, ragModel.CacheTierResponse, repeat.Cached)
	require.EqualValues(t, 1, h.llm.Calls.Load())

	path := filepath.Join(t.TempDir(), "manual.txt")
	require.NoError(t, os.WriteFile(path, []byte(chunkContent), 0o600))
	job := h.svc.ReindexDocument(testCtx(), jobModel.Job{Id: "job-3", JobPayload: jobModel.JobPayload{
		DocumentID: docID, DocumentName: "Manual", IngestPath: path,
	}})
	require.Equal(t, jobModel.JobStatusComplete, job.Status, "job error: %+v", job.Error)
	assert.GreaterOrEqual(t, job.JobPayload.InvalidatedCacheKeys, int64(1))

	answer, _ := ask(t, h, coldQuery)
	assert.Equal(t, ragModel.CacheTierNone, answer.Cached)
	assert.EqualValues(t, 2, h.llm.Calls.Load(), "the response key must be gone after a reindex")
}

func TestGenerateAnswer_RerankerDroppingEverythingSkipsLLM(t *testing.T) {
	h := newHarness(t, true)
	h.reranker.OnRerank = func(ctx context.Context, query string, chunks []ragModel.RankedResult, topK int) []ragModel.RankedResult {
		return nil
	}

	answer, timing := ask(t, h, coldQuery)

	assert.Equal(t, config.NoInformationAnswer, answer.Response)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, timing.ChunksAfterRerank)
	assert.EqualValues(t, 0, h.llm.Calls.Load())
}

func TestGenerateAnswer_ReindexFailureIsReported(t *testing.T) {
	h := newHarness(t, true)
	path := filepath.Join(t.TempDir(), "manual.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))
	h.writer.OnReplace = func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
		return errors.New("db down")
	}

	job := h.svc.ReindexDocument(testCtx(), jobModel.Job{Id: "job-2", JobPayload: jobModel.JobPayload{DocumentID: docID, IngestPath: path}})
	assert.Equal(t, jobModel.JobStatusError, job.Status)
	assert.Equal(t, jobModel.Error, job.CurrentStep)
	assert.True(t, job.Error.Retry)
}

func TestGenerateAnswer_LLMErrorIsAnAnswer(t *testing.T) {
	h := newHarness(t, true)
	h.llm.OnGenerate = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("provider down")
	}

	answer, timing, err := h.svc.GenerateAnswer(testCtx(), rag.QueryRequest{Query: coldQuery, DocumentID: docID})

	require.NoError(t, err)
	assert.Equal(t, "Error generating response: provider down", answer.Response)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, timing.ParseStage)
	assert.Equal(t, 0, h.semantic.Len(), "failed generations are not cached")
	_, ok := h.responses.GetResponse(testCtx(), coldQuery, docID, ragCache.ContextHash([]string{chunkContent}))
	assert.False(t, ok)
}

func TestGenerateAnswer_EmptyRetrievalSkipsLLM(t *testing.T) {
	h := newHarness(t, true)
	h.retriever.OnRetrieve = func(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, error) {
		return nil, nil
	}

	answer, timing := ask(t, h, coldQuery)

	assert.Equal(t, config.NoInformationAnswer, answer.Response)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, timing.ChunksRetrieved)
	assert.EqualValues(t, 0, h.llm.Calls.Load())
}

func TestGenerateAnswer_UnparsableCompletion(t *testing.T) {
	h := newHarness(t, false)
	h.llm.OnGenerate = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "Sure! The pump needs priming.", nil
	}

	answer, timing := ask(t, h, coldQuery)
	assert.Equal(t, "Sure! The pump needs priming.", answer.Response)
	assert.Equal(t, "raw_text", timing.ParseStage)
}

func TestGenerateAnswer_RequestDefaults(t *testing.T) {
	h := newHarness(t, false)
	var seen retrieval.Request
	h.retriever.OnRetrieve = func(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, error) {
		seen = req
		return nil, nil
	}

	ask(t, h, coldQuery)

	if seen.TopK != 15 {
		t.Errorf("TopK got %d, want the default 15", seen.TopK)
	}
	if len(seen.Embedding) == 0 {
		t.Errorf("retrieval should reuse the query embedding")
	}
	if h.embedder.EmbedCalls.Load() != 1 {
		t.Errorf("query embedded %d times, want 1", h.embedder.EmbedCalls.Load())
	}
}

func TestGenerateAnswer_Failures(t *testing.T) {
	tests := []struct {
		name           string
		req            rag.QueryRequest
		setupMocks     func(h *harness)
		expectedErr    error
		expectedErrMsg string
		retrieverCalls int32
	}{
		{
			name:        "Empty_Query",
			req:         rag.QueryRequest{DocumentID: docID},
			expectedErr: rag.ErrEmptyQuery,
		},
		{
			name:        "Empty_Document",
			req:         rag.QueryRequest{Query: coldQuery},
			expectedErr: rag.ErrEmptyDocumentID,
		},
		{
			name: "Failure_Embedding",
			req:  rag.QueryRequest{Query: coldQuery, DocumentID: docID},
			setupMocks: func(h *harness) {
				h.embedder.OnEmbed = func(ctx context.Context, query string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			expectedErrMsg: "api limit",
		},
		{
			name: "Failure_Search",
			req:  rag.QueryRequest{Query: coldQuery, DocumentID: docID},
			setupMocks: func(h *harness) {
				h.retriever.OnRetrieve = func(ctx context.Context, req retrieval.Request) ([]ragModel.RankedResult, error) {
					return nil, fmt.Errorf("%w: db timeout", retrieval.ErrSearchFailed)
				}
			},
			expectedErr:    retrieval.ErrSearchFailed,
			retrieverCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true)
			if tt.setupMocks != nil {
				tt.setupMocks(h)
			}

			_, _, err := h.svc.GenerateAnswer(testCtx(), tt.req)

			if err == nil {
				t.Fatalf("expected an error")
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Errorf("error got %v, want %v", err, tt.expectedErr)
			}
			if tt.expectedErrMsg != "" && !strings.Contains(err.Error(), tt.expectedErrMsg) {
				t.Errorf("error got %v, want it to mention %q", err, tt.expectedErrMsg)
			}
			if got := h.retriever.Calls.Load(); got != tt.retrieverCalls {
				t.Errorf("retriever called %d times, want %d", got, tt.retrieverCalls)
			}
			if h.llm.Calls.Load() != 0 {
				t.Errorf("LLM must not be called")
			}
		})
	}
}

func TestInvalidateDocument(t *testing.T) {
	h := newHarness(t, true)
	ask(t, h, coldQuery)
	waitForCacheWrites(t, h, coldQuery)

	inv, err := h.svc.InvalidateDocument(testCtx(), docID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inv.EphemeralKeys)
	assert.EqualValues(t, 1, inv.SemanticRows)

	again, err := h.svc.InvalidateDocument(testCtx(), docID)
	require.NoError(t, err)
	assert.Equal(t, rag.Invalidation{}, again)

	_, err = h.svc.InvalidateDocument(testCtx(), "")
	assert.ErrorIs(t, err, rag.ErrEmptyDocumentID)
}

func TestReindexDocument_MissingDocument(t *testing.T) {
	h := newHarness(t, false)
	job := h.svc.ReindexDocument(testCtx(), jobModel.Job{Id: "job-3"})
	if job.Status != jobModel.JobStatusError || job.Error.Code != http.StatusBadRequest {
		t.Errorf("got %+v", job)
	}
}
