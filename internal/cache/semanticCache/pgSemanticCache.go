package semanticCache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

const (
	findSimilarSQL = `
SELECT id::text AS id, query_text, document_id, response_data, COALESCE(context_hash, '') AS context_hash,
       hit_count, created_at, last_accessed_at,
       1 - (query_embedding <=> $1) AS similarity
FROM semantic_cache_responses
WHERE document_id = $2
  AND 1 - (query_embedding <=> $1) >= $3
ORDER BY query_embedding <=> $1
LIMIT 1`

	insertSQL = `
INSERT INTO semantic_cache_responses (id, query_text, query_embedding, document_id, response_data, context_hash)
VALUES ($1, $2, $3, $4, $5, $6)`

	recordHitSQL = `
UPDATE semantic_cache_responses
SET hit_count = hit_count + 1, last_accessed_at = now()
WHERE id = $1`

	deleteDocumentSQL = `DELETE FROM semantic_cache_responses WHERE document_id = $1`

	pruneSQL = `DELETE FROM semantic_cache_responses WHERE last_accessed_at < $1`
)

type cacheRow struct {
	ID             string    `db:"id"`
	QueryText      string    `db:"query_text"`
	DocumentID     string    `db:"document_id"`
	ResponseData   []byte    `db:"response_data"`
	ContextHash    string    `db:"context_hash"`
	HitCount       int       `db:"hit_count"`
	CreatedAt      time.Time `db:"created_at"`
	LastAccessedAt time.Time `db:"last_accessed_at"`
	Similarity     float64   `db:"similarity"`
}

type PgCache struct {
	db     *sqlx.DB
	logger *logger_i.Logger
}

func NewPgCache(db *sqlx.DB) *PgCache {
	return &PgCache{
		db:     db,
		logger: logger_i.NewLogger("Semantic Cache"),
	}
}

func (c *PgCache) FindSimilar(ctx context.Context, embedding []float32, documentID string, threshold float64) (*ragModel.SemanticCacheRecord, bool) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentID)

	var row cacheRow
	err := c.db.GetContext(ctx, &row, findSimilarSQL, pgvector.NewVector(embedding), documentID, threshold)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}
	if err != nil {
		log.Warn("Semantic cache lookup failed, continuing without it", "error", err)
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}

	var answer ragModel.StructuredAnswer
	if err := json.Unmarshal(row.ResponseData, &answer); err != nil {
		log.Warn("Semantic cache row is not a valid answer", "id", row.ID, "error", err)
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheSemantic, true)
	log.Info("Semantic cache hit", "similarity", row.Similarity, "hits", row.HitCount+1)
	go c.recordHit(ctx, row.ID)

	return &ragModel.SemanticCacheRecord{
		ID:             row.ID,
		QueryText:      row.QueryText,
		DocumentID:     row.DocumentID,
		Response:       answer,
		ContextHash:    row.ContextHash,
		HitCount:       row.HitCount + 1,
		CreatedAt:      row.CreatedAt,
		LastAccessedAt: row.LastAccessedAt,
		Similarity:     row.Similarity,
	}, true
}

func (c *PgCache) recordHit(parent context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), config.CacheWriteTimeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, recordHitSQL, id); err != nil {
		c.logger.Warn("Failed to record semantic cache hit", "id", id, "error", err)
	}
}

func (c *PgCache) Store(ctx context.Context, queryText string, embedding []float32, documentID string, answer ragModel.StructuredAnswer, contextHash string) error {
	data, err := json.Marshal(StoredAnswer(answer))
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = c.db.ExecContext(ctx, insertSQL,
		uuid.NewString(), queryText, pgvector.NewVector(embedding), documentID, string(data), contextHash)
	if err != nil {
		return fmt.Errorf("store semantic cache row: %w", err)
	}
	return nil
}

func (c *PgCache) InvalidateDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, deleteDocumentSQL, documentID)
	if err != nil {
		return 0, fmt.Errorf("invalidate semantic cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *PgCache) PruneStale(ctx context.Context, notAccessedSince time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, pruneSQL, notAccessedSince)
	if err != nil {
		return 0, fmt.Errorf("prune semantic cache: %w", err)
	}
	return res.RowsAffected()
}
