package pgvectorDB

import (
	"context"
	"fmt"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

const (
	vectorSearchSQL = `
SELECT id::text AS id, content, page_number, chunk_metadata,
       1 - (embedding <=> $1) AS score
FROM document_chunks
WHERE document_id = $2
ORDER BY embedding <=> $1
LIMIT $3`

	lexicalSearchSQL = `
SELECT id::text AS id, content, page_number, chunk_metadata,
       ts_rank(content_tsv, plainto_tsquery('english', $1)) AS score
FROM document_chunks
WHERE document_id = $2
  AND content_tsv @@ plainto_tsquery('english', $1)
ORDER BY score DESC
LIMIT $3`

	upsertDocumentSQL = `
INSERT INTO documents (id, name, content_type, source_url, ingested_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, content_type = EXCLUDED.content_type,
    source_url = EXCLUDED.source_url, ingested_at = EXCLUDED.ingested_at`

	deleteChunksSQL = `DELETE FROM document_chunks WHERE document_id = $1`

	insertChunkSQL = `
INSERT INTO document_chunks (id, document_id, chunk_index, content, page_number, chunk_metadata, embedding, embedding_model)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

type chunkRow struct {
	ID       string  `db:"id"`
	Content  string  `db:"content"`
	Page     int     `db:"page_number"`
	Metadata []byte  `db:"chunk_metadata"`
	Score    float64 `db:"score"`
}

// ChunkStore serves both searches of hybrid retrieval from the document_chunks table.
type ChunkStore struct {
	db     *sqlx.DB
	logger *logger_i.Logger
}

func NewChunkStore(db *sqlx.DB) *ChunkStore {
	return &ChunkStore{db: db, logger: logger_i.NewLogger("Chunk Store")}
}

// VectorSearch orders by ascending cosine distance and reports 1 - distance as the score.
func (s *ChunkStore) VectorSearch(ctx context.Context, embedding []float32, documentID, documentName string, k int) ([]ragModel.Chunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, vectorSearchSQL, pgvector.NewVector(embedding), documentID, k); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Debug("Vector search", "documentId", documentID, "matches", len(rows))
	return toChunks(rows, documentName), nil
}

// LexicalSearch ranks chunks matching the query terms by ts_rank.
func (s *ChunkStore) LexicalSearch(ctx context.Context, query, documentID, documentName string, k int) ([]ragModel.Chunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, lexicalSearchSQL, query, documentID, k); err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)).Debug("Lexical search", "documentId", documentID, "matches", len(rows))
	return toChunks(rows, documentName), nil
}

func toChunks(rows []chunkRow, documentName string) []ragModel.Chunk {
	chunks := make([]ragModel.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, ragModel.NewChunk(r.ID, r.Content, r.Score, r.Page, r.Metadata, documentName))
	}
	return chunks
}

// ReplaceDocumentChunks swaps the document's chunk set in one transaction so readers never see
// a half-written document.
func (s *ChunkStore) ReplaceDocumentChunks(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) (err error) {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertDocumentSQL, doc.Id, doc.Name, string(doc.ContentType), doc.SourceURL, doc.LastIngestTimestamp); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err = tx.ExecContext(ctx, deleteChunksSQL, doc.Id); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for i, chunk := range chunks {
		meta := "{}"
		if len(chunk.Metadata) > 0 {
			meta = string(chunk.Metadata)
		}
		_, err = tx.ExecContext(ctx, insertChunkSQL,
			chunk.ChunkId, doc.Id, chunk.ChunkPageOrder, chunk.Chunk, chunk.PageNum, meta,
			pgvector.NewVector(vectors[i]), chunk.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("Replaced document chunks", "documentId", doc.Id, "chunks", len(chunks))
	return nil
}

func (s *ChunkStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, deleteChunksSQL, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
