package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
)

type mockEmbedder struct {
	batchFunc func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}
func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	return m.batchFunc(ctx, chunks)
}
func (m *mockEmbedder) ModelName() string { return "test-model" }

func okEmbedder() *mockEmbedder {
	return &mockEmbedder{batchFunc: func(ctx context.Context, ch []string) ([][]float32, error) {
		return make([][]float32, len(ch)), nil
	}}
}

type mockWriter struct {
	replaceFunc func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error
}

func (m *mockWriter) ReplaceDocumentChunks(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
	return m.replaceFunc(ctx, doc, chunks, vectors)
}
func (m *mockWriter) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	return nil
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp doc: %v", err)
	}
	return path
}

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"image.png", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestSplitTextIntoChunks(t *testing.T) {
	text := "This is a long sentence. This is another sentence that will be split."
	limit := 30
	overlap := 5

	chunks := splitTextIntoChunks(text, limit, overlap)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	tail := chunks[0][len(chunks[0])-overlap:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("second chunk %q does not start with overlap %q", chunks[1], tail)
	}
}

func TestSplitTextIntoChunks_ShortText(t *testing.T) {
	chunks := splitTextIntoChunks("short", 30, 5)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Errorf("got %v", chunks)
	}
}

func TestPrepareChunks(t *testing.T) {
	pages := []rawPage{
		{Number: 1, Content: "Page one content."},
		{Number: 2, Content: "   "},
		{Number: 3, Content: "Page three content."},
	}
	doc := commonModels.Document{Id: "doc-1", Name: "Manual"}

	chunks := PrepareChunks(pages, doc, "text-embedding-3-small")

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks (blank page skipped), got %d", len(chunks))
	}
	if chunks[1].Doc.Id != "doc-1" || chunks[1].PageNum != 3 || chunks[1].ChunkPageOrder != 1 {
		t.Errorf("Metadata mismatch in chunk 1: %+v", chunks[1])
	}
	if chunks[0].EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("embedding model = %q", chunks[0].EmbeddingModel)
	}

	meta := ragModel.ParseChunkMetadata(chunks[1].Metadata)
	if meta.Page != 3 || meta.Section() != "Manual" || meta.Title != "Manual" {
		t.Errorf("stored metadata reads back as %+v", meta)
	}
}

func TestEmbedChunks_Batches(t *testing.T) {
	chunks := make([]commonModels.DocChunk, config.EmbeddingBatchSize*2+50)
	for i := range chunks {
		chunks[i] = commonModels.DocChunk{Chunk: "test content"}
	}

	calls := 0
	emb := &mockEmbedder{batchFunc: func(ctx context.Context, ch []string) ([][]float32, error) {
		calls++
		return make([][]float32, len(ch)), nil
	}}

	vectors, err := EmbedChunks(testCtx(), chunks, emb)
	if err != nil {
		t.Fatalf("EmbedChunks failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 batches, got %d", calls)
	}
	if len(vectors) != len(chunks) {
		t.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
}

func TestEmbedChunks_ShortBatchIsAnError(t *testing.T) {
	emb := &mockEmbedder{batchFunc: func(ctx context.Context, ch []string) ([][]float32, error) {
		return nil, nil
	}}
	if _, err := EmbedChunks(testCtx(), []commonModels.DocChunk{{Chunk: "hi"}}, emb); err == nil {
		t.Error("Expected error for a short embedding batch")
	}
}

func TestProcessReindex(t *testing.T) {
	path := writeTempDoc(t, "guide.txt", "The pump must be primed before first use.\n\nCheck the seal monthly.")

	var invalidations int
	invalidate := func(ctx context.Context, documentID string) (int64, int64, error) {
		invalidations++
		if documentID != "doc-1" {
			t.Errorf("invalidated %q", documentID)
		}
		return 3, 1, nil
	}

	var written []commonModels.DocChunk
	writer := &mockWriter{replaceFunc: func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
		if invalidations != 1 {
			t.Errorf("chunks written after %d invalidations, want 1", invalidations)
		}
		if doc.Id != "doc-1" || doc.Name != "Guide" {
			t.Errorf("unexpected document %+v", doc)
		}
		written = chunks
		return nil
	}}

	job := jobModel.Job{Id: "job-1", JobPayload: jobModel.JobPayload{
		DocumentID: "doc-1", DocumentName: "Guide", IngestPath: path, IngestFileName: "guide.txt",
	}}

	got := ProcessReindex(testCtx(), job, okEmbedder(), []vectorDB.ChunkWriter{writer}, invalidate)

	if got.Status != jobModel.JobStatusComplete {
		t.Fatalf("status = %s, error = %+v", got.Status, got.Error)
	}
	if invalidations != 2 {
		t.Errorf("expected invalidation before and after the write, got %d", invalidations)
	}
	if len(written) == 0 || got.JobPayload.ChunksWritten != len(written) {
		t.Errorf("chunks written = %d, payload says %d", len(written), got.JobPayload.ChunksWritten)
	}
	if got.JobPayload.InvalidatedCacheKeys != 6 || got.JobPayload.InvalidatedCachedRows != 2 {
		t.Errorf("invalidation counts = %d/%d", got.JobPayload.InvalidatedCacheKeys, got.JobPayload.InvalidatedCachedRows)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ingest file should be removed after the job")
	}
}

func TestProcessReindex_InvalidationFailureStopsBeforeWrite(t *testing.T) {
	path := writeTempDoc(t, "guide.txt", "content")
	writer := &mockWriter{replaceFunc: func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
		t.Error("chunks must not be written when invalidation fails")
		return nil
	}}
	invalidate := func(ctx context.Context, documentID string) (int64, int64, error) {
		return 0, 0, errors.New("redis down")
	}

	job := jobModel.Job{JobPayload: jobModel.JobPayload{DocumentID: "doc-1", IngestPath: path}}
	got := ProcessReindex(testCtx(), job, okEmbedder(), []vectorDB.ChunkWriter{writer}, invalidate)

	if got.Status != jobModel.JobStatusError || !got.Error.Retry {
		t.Errorf("expected a retryable error, got %+v", got)
	}
	if got.CurrentStep != jobModel.CacheInvalidation {
		t.Errorf("failed at step %s", got.CurrentStep)
	}
}

func TestProcessReindex_MissingDocumentID(t *testing.T) {
	got := ProcessReindex(testCtx(), jobModel.Job{}, okEmbedder(), nil, func(ctx context.Context, id string) (int64, int64, error) {
		t.Error("nothing should be invalidated without a document id")
		return 0, 0, nil
	})
	if got.Status != jobModel.JobStatusError || got.Error.Code != http.StatusBadRequest {
		t.Errorf("got %+v", got)
	}
}

func TestProcessReindex_SourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/guide.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("Downloaded document text."))
	}))
	defer srv.Close()

	var content string
	writer := &mockWriter{replaceFunc: func(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
		content = chunks[0].Chunk
		if doc.SourceURL == "" {
			t.Error("source url should be recorded on the document")
		}
		return nil
	}}
	noop := func(ctx context.Context, id string) (int64, int64, error) { return 0, 0, nil }

	job := jobModel.Job{JobPayload: jobModel.JobPayload{DocumentID: "doc-2", SourceURL: srv.URL + "/files/guide.txt"}}
	got := ProcessReindex(testCtx(), job, okEmbedder(), []vectorDB.ChunkWriter{writer}, noop)

	if got.Status != jobModel.JobStatusComplete {
		t.Fatalf("status = %s, error = %+v", got.Status, got.Error)
	}
	if content != "Downloaded document text." {
		t.Errorf("chunk content = %q", content)
	}
}

func TestProcessReindex_SourceURLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	noop := func(ctx context.Context, id string) (int64, int64, error) { return 0, 0, nil }

	job := jobModel.Job{JobPayload: jobModel.JobPayload{DocumentID: "doc-2", SourceURL: srv.URL + "/missing.pdf"}}
	got := ProcessReindex(testCtx(), job, okEmbedder(), nil, noop)
	if got.Status != jobModel.JobStatusError || got.Error.Code != http.StatusBadGateway {
		t.Errorf("got %+v", got)
	}
}
