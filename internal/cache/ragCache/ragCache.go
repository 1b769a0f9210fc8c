// Package ragCache is the Redis-backed ephemeral cache of the query pipeline: query embeddings,
// retrieved chunk sets and exact-match responses. Chunk-set and response keys are tracked per
// document so a re-ingested document can drop all of them in one pass.
package ragCache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

const (
	EmbeddingPrefix = "emb:"
	ChunksPrefix    = "chunks:"
	ResponsePrefix  = "resp:"
	TrackingPrefix  = "doc_keys:"

	// tracking sets outlive everything they point at
	trackingMargin = time.Hour
)

// KV is the subset of the Redis store the cache needs.
type KV interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	IsNil(err error) bool
	SetAddWithTTL(ctx context.Context, key string, member string, expiration time.Duration) error
	SetMembers(ctx context.Context, key string) ([]string, error)
}

type TTLs struct {
	Embedding time.Duration
	Chunks    time.Duration
	Response  time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Embedding: 24 * time.Hour,
		Chunks:    time.Hour,
		Response:  30 * time.Minute,
	}
}

type Store struct {
	kv     KV
	ttl    TTLs
	logger *logger_i.Logger
}

func New(kv KV, ttl TTLs) *Store {
	return &Store{
		kv:     kv,
		ttl:    ttl,
		logger: logger_i.NewLogger("RAG Cache"),
	}
}

// HashKey is the first 16 hex chars of SHA-256 over the colon-joined parts.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])[:16]
}

func EmbeddingKey(query string) string {
	return EmbeddingPrefix + HashKey(query)
}

func ChunksKey(query, documentID string) string {
	return ChunksPrefix + HashKey(query, documentID)
}

func ResponseKey(query, documentID, contextHash string) string {
	return ResponsePrefix + HashKey(query, documentID, contextHash)
}

func TrackingKey(documentID string) string {
	return TrackingPrefix + documentID
}

// ContextHash digests a chunk set independent of its order: the contents are sorted, encoded
// as a JSON array and hashed. The 32-char prefix fits the persistent cache column.
func ContextHash(contents []string) string {
	sorted := append([]string(nil), contents...)
	sort.Strings(sorted)
	encoded, _ := json.Marshal(sorted)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:32]
}

func (s *Store) trackingTTL() time.Duration {
	return max(s.ttl.Embedding, s.ttl.Chunks, s.ttl.Response) + trackingMargin
}

// Get fails open: a Redis error is logged and reported as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.kv.GetBytes(ctx, key)
	if err != nil {
		if !s.kv.IsNil(err) {
			s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Warn("Cache read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.kv.Set(ctx, key, value, ttl)
}

func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	return s.kv.Del(ctx, keys...)
}

func (s *Store) TrackKey(ctx context.Context, documentID, key string) error {
	return s.kv.SetAddWithTTL(ctx, TrackingKey(documentID), key, s.trackingTTL())
}

// InvalidateDocument deletes every tracked key of the document plus the tracking set itself and
// returns how many tracked keys were still present.
func (s *Store) InvalidateDocument(ctx context.Context, documentID string) (int64, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentID)
	trackingKey := TrackingKey(documentID)
	keys, err := s.kv.SetMembers(ctx, trackingKey)
	if err != nil && !s.kv.IsNil(err) {
		return 0, err
	}
	deleted, err := s.kv.Del(ctx, keys...)
	if err != nil {
		return 0, err
	}
	if _, err = s.kv.Del(ctx, trackingKey); err != nil {
		return deleted, err
	}
	log.Info("Invalidated document cache", "tracked", len(keys), "deleted", deleted)
	return deleted, nil
}

func (s *Store) GetEmbedding(ctx context.Context, query string) ([]float32, bool) {
	var vector []float32
	if !s.getJSON(ctx, EmbeddingKey(query), &vector) || len(vector) == 0 {
		metrics.RecordCacheLookup(metrics.CacheEmbedding, false)
		return nil, false
	}
	metrics.RecordCacheLookup(metrics.CacheEmbedding, true)
	return vector, true
}

// SetEmbedding is never tracked per document: embeddings depend on the query alone.
func (s *Store) SetEmbedding(ctx context.Context, query string, vector []float32) error {
	return s.setJSON(ctx, EmbeddingKey(query), vector, s.ttl.Embedding)
}

func (s *Store) GetChunks(ctx context.Context, query, documentID string) ([]ragModel.RankedResult, bool) {
	var chunks []ragModel.RankedResult
	if !s.getJSON(ctx, ChunksKey(query, documentID), &chunks) || len(chunks) == 0 {
		metrics.RecordCacheLookup(metrics.CacheChunks, false)
		return nil, false
	}
	metrics.RecordCacheLookup(metrics.CacheChunks, true)
	return chunks, true
}

func (s *Store) SetChunks(ctx context.Context, query, documentID string, chunks []ragModel.RankedResult) error {
	return s.setTracked(ctx, documentID, ChunksKey(query, documentID), chunks, s.ttl.Chunks)
}

func (s *Store) GetResponse(ctx context.Context, query, documentID, contextHash string) (ragModel.StructuredAnswer, bool) {
	var answer ragModel.StructuredAnswer
	if !s.getJSON(ctx, ResponseKey(query, documentID, contextHash), &answer) {
		metrics.RecordCacheLookup(metrics.CacheResponse, false)
		return answer, false
	}
	metrics.RecordCacheLookup(metrics.CacheResponse, true)
	return answer, true
}

func (s *Store) SetResponse(ctx context.Context, query, documentID, contextHash string, answer ragModel.StructuredAnswer) error {
	return s.setTracked(ctx, documentID, ResponseKey(query, documentID, contextHash), answer, s.ttl.Response)
}

func (s *Store) getJSON(ctx context.Context, key string, dest any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, ttl)
}

func (s *Store) setTracked(ctx context.Context, documentID, key string, value any, ttl time.Duration) error {
	if err := s.setJSON(ctx, key, value, ttl); err != nil {
		return err
	}
	return s.TrackKey(ctx, documentID, key)
}
