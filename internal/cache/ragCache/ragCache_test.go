package ragCache_test

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/ragCache"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/data/redisStore"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ragCache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ragCache.New(redisStore.NewTestStore(client), ragCache.DefaultTTLs()), mr
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "cache-test")
}

func TestHashKey_Deterministic(t *testing.T) {
	a := ragCache.EmbeddingKey("inclusion criteria?")
	b := ragCache.EmbeddingKey("inclusion criteria?")
	assert.Equal(t, a, b)
	assert.Len(t, a, len(ragCache.EmbeddingPrefix)+16)

	assert.NotEqual(t, ragCache.ChunksKey("q", "doc-1"), ragCache.ChunksKey("q", "doc-2"))
	assert.NotEqual(t, ragCache.ResponseKey("q", "doc-1", "h1"), ragCache.ResponseKey("q", "doc-1", "h2"))
	// parts are colon joined, so the split point matters only through the joined string
	assert.Equal(t, ragCache.HashKey("a:b", "c"), ragCache.HashKey("a", "b:c"))
}

func TestContextHash_OrderIndependent(t *testing.T) {
	h1 := ragCache.ContextHash([]string{"alpha", "beta", "gamma"})
	h2 := ragCache.ContextHash([]string{"gamma", "alpha", "beta"})
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
	assert.NotEqual(t, h1, ragCache.ContextHash([]string{"alpha", "beta"}))
}

func TestStore_RoundTripIsByteIdentical(t *testing.T) {
	store, _ := newTestCache(t)
	ctx := testCtx()
	payload := []byte{0x00, 0x7b, 0xff, '"', '\n'}

	require.NoError(t, store.Set(ctx, "raw:key", payload, time.Minute))
	got, ok := store.Get(ctx, "raw:key")
	require.True(t, ok)
	assert.Equal(t, payload, got)

	_, ok = store.Get(ctx, "raw:missing")
	assert.False(t, ok)
}

func TestStore_TypedEntriesAndTTLs(t *testing.T) {
	store, mr := newTestCache(t)
	ctx := testCtx()

	vector := []float32{0.25, -0.5, 1}
	require.NoError(t, store.SetEmbedding(ctx, "q", vector))
	got, ok := store.GetEmbedding(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, vector, got)
	assert.Equal(t, 24*time.Hour, mr.TTL(ragCache.EmbeddingKey("q")))

	chunks := []ragModel.RankedResult{{Chunk: ragModel.Chunk{ID: "c1", Content: "text", Page: 2, Title: "Protocol"}, VectorRank: 1, RRFScore: 1.0 / 61}}
	require.NoError(t, store.SetChunks(ctx, "q", "doc-1", chunks))
	gotChunks, ok := store.GetChunks(ctx, "q", "doc-1")
	require.True(t, ok)
	assert.Equal(t, chunks, gotChunks)
	assert.Equal(t, time.Hour, mr.TTL(ragCache.ChunksKey("q", "doc-1")))

	answer := ragModel.StructuredAnswer{Response: "yes", Sources: []ragModel.Source{{Name: "Protocol", Page: 2, ExactText: "text", BBoxes: []ragModel.BBox{{1, 2, 3, 4}}, Relevance: ragModel.RelevanceHigh}}}
	require.NoError(t, store.SetResponse(ctx, "q", "doc-1", "hash", answer))
	gotAnswer, ok := store.GetResponse(ctx, "q", "doc-1", "hash")
	require.True(t, ok)
	assert.Equal(t, answer, gotAnswer)
	assert.Equal(t, 30*time.Minute, mr.TTL(ragCache.ResponseKey("q", "doc-1", "hash")))

	tracked, err := mr.Members(ragCache.TrackingKey("doc-1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ragCache.ChunksKey("q", "doc-1"), ragCache.ResponseKey("q", "doc-1", "hash")}, tracked)
	assert.Equal(t, 25*time.Hour, mr.TTL(ragCache.TrackingKey("doc-1")))
}

func TestStore_InvalidateDocument(t *testing.T) {
	store, mr := newTestCache(t)
	ctx := testCtx()
	answer := ragModel.StructuredAnswer{Response: "cached"}

	require.NoError(t, store.SetEmbedding(ctx, "q", []float32{1}))
	require.NoError(t, store.SetChunks(ctx, "q", "doc-1", []ragModel.RankedResult{{Chunk: ragModel.Chunk{Content: "x"}}}))
	require.NoError(t, store.SetResponse(ctx, "q", "doc-1", "h", answer))
	require.NoError(t, store.SetResponse(ctx, "q", "doc-2", "h", answer))

	deleted, err := store.InvalidateDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, ok := store.GetChunks(ctx, "q", "doc-1")
	assert.False(t, ok)
	_, ok = store.GetResponse(ctx, "q", "doc-1", "h")
	assert.False(t, ok)
	assert.False(t, mr.Exists(ragCache.TrackingKey("doc-1")))

	// other documents and query-only embeddings survive
	_, ok = store.GetResponse(ctx, "q", "doc-2", "h")
	assert.True(t, ok)
	_, ok = store.GetEmbedding(ctx, "q")
	assert.True(t, ok)

	deleted, err = store.InvalidateDocument(ctx, "never-cached")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStore_FailsOpenWhenRedisIsDown(t *testing.T) {
	store, mr := newTestCache(t)
	ctx := testCtx()
	require.NoError(t, store.SetEmbedding(ctx, "q", []float32{1}))

	mr.Close()

	_, ok := store.GetEmbedding(ctx, "q")
	assert.False(t, ok)
	assert.Error(t, store.SetEmbedding(ctx, "q", []float32{1}))
}
