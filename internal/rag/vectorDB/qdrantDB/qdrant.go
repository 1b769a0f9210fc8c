package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingOutputDimensionality)

const documentIDField = "document_id"

type ClientHolder struct {
	QObj *qdrant.Client
}

// GetQuadrantClient connects once per process and ensures both collections exist. It returns
// nil when Qdrant is unreachable.
func GetQuadrantClient(ctx context.Context, host string, port int) *ClientHolder {

	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(ctx, host, port)
		if res != nil {
			quadrantInstance = res
			go closeQdrant(ctx, quadrantInstance)
		}
	})

	if quadrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: quadrantInstance,
	}
}

func newClient(ctx context.Context, host string, port int) *qdrant.Client {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil
	}

	for _, name := range []string{config.ChunkCollectionName, config.SemanticCacheCollectionName} {
		if err = createCollection(ctx, client, name); err != nil {
			logger.Error("could not create collection", "collectionName", name, "error", err)
			_ = client.Close()
			return nil
		}
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

// ChunkIndex is the Qdrant alternative to the pgvector chunk column for vector search.
type ChunkIndex struct {
	holder     *ClientHolder
	collection string
}

func NewChunkIndex(holder *ClientHolder) *ChunkIndex {
	return &ChunkIndex{holder: holder, collection: config.ChunkCollectionName}
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(documentIDField, documentID)},
	}
}

func (ci *ChunkIndex) VectorSearch(ctx context.Context, vectorFloat []float32, documentID, documentName string, k int) ([]ragModel.Chunk, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	result, err := ci.holder.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ci.collection,
		Query:          qdrant.NewQuery(vectorFloat...),
		Filter:         documentFilter(documentID),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})

	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, err
	}

	chunks := make([]ragModel.Chunk, 0, len(result))
	for _, hit := range result {
		chunks = append(chunks, ragModel.NewChunk(
			hit.Payload["chunk_id"].GetStringValue(),
			hit.Payload["content"].GetStringValue(),
			float64(hit.Score),
			int(hit.Payload["page_num"].GetIntegerValue()),
			[]byte(hit.Payload["chunk_metadata"].GetStringValue()),
			documentName,
		))
	}

	loggr.Debug("Qdrant vector search", "matches", len(chunks))
	return chunks, nil
}

func (ci *ChunkIndex) ReplaceDocumentChunks(ctx context.Context, doc commonModels.Document, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if err := ci.DeleteDocumentChunks(ctx, doc.Id); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))

	for i, chunk := range chunks {
		payload, err := qdrant.TryValueMap(map[string]any{
			"content":         chunk.Chunk,
			"page_num":        chunk.PageNum,
			documentIDField:   doc.Id,
			"doc_name":        doc.Name,
			"chunk_order":     chunk.ChunkPageOrder,
			"chunk_id":        chunk.ChunkId,
			"chunk_metadata":  string(chunk.Metadata),
			"ingested_at":     doc.LastIngestTimestamp.Unix(),
			"embedding_model": chunk.EmbeddingModel,
		})
		if err != nil {
			return fmt.Errorf("chunk %s payload: %w", chunk.ChunkId, err)
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	_, err := ci.holder.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ci.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})

	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	return nil
}

func (ci *ChunkIndex) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	_, err := ci.holder.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ci.collection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	// document scoped filters need a keyword index on the payload field
	_, err = client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collectionName,
		FieldName:      documentIDField,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	return err
}
