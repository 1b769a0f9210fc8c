package vectorDB

import (
	"context"

	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

// VectorSearcher returns a document's chunks ordered by ascending cosine distance to the
// query vector. Chunk.Score is the cosine similarity.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, embedding []float32, documentID, documentName string, k int) ([]ragModel.Chunk, error)
}

// LexicalSearcher returns chunks whose text matches the query terms, best match first.
// Chunk.Score is the full-text rank.
type LexicalSearcher interface {
	LexicalSearch(ctx context.Context, query, documentID, documentName string, k int) ([]ragModel.Chunk, error)
}

// ChunkWriter owns the stored chunks of a document.
type ChunkWriter interface {
	ReplaceDocumentChunks(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error
	DeleteDocumentChunks(ctx context.Context, documentID string) error
}
