package qdrantDB

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/semanticCache"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// SemanticCache keeps answers in the semantic-cache collection, one point per answer, with the
// owning document id in the payload.
type SemanticCache struct {
	holder     *ClientHolder
	collection string
}

var _ semanticCache.Cache = (*SemanticCache)(nil)

func NewSemanticCache(holder *ClientHolder) *SemanticCache {
	return &SemanticCache{holder: holder, collection: config.SemanticCacheCollectionName}
}

func (sc *SemanticCache) FindSimilar(ctx context.Context, queryVector []float32, documentID string, threshold float64) (*ragModel.SemanticCacheRecord, bool) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentID)

	searchResult, err := sc.holder.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: sc.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         documentFilter(documentID),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Warn("Cache query failed, continuing without it", "error", err)
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}
	// the server applies the threshold, this guards against a client that ignores it
	if len(searchResult) == 0 || float64(searchResult[0].Score) < threshold {
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}

	hit := searchResult[0]
	var answer ragModel.StructuredAnswer
	if err := json.Unmarshal([]byte(hit.Payload["response_data"].GetStringValue()), &answer); err != nil {
		loggr.Warn("Cached point is not a valid answer", "error", err)
		metrics.RecordCacheLookup(metrics.CacheSemantic, false)
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheSemantic, true)
	loggr.Info("Semantic cache hit", "similarity", hit.Score)

	id := hit.Id.GetUuid()
	hitCount := int(hit.Payload["hit_count"].GetIntegerValue()) + 1
	go sc.recordHit(ctx, id, hitCount)

	return &ragModel.SemanticCacheRecord{
		ID:             id,
		QueryText:      hit.Payload["query_text"].GetStringValue(),
		DocumentID:     documentID,
		Response:       answer,
		ContextHash:    hit.Payload["context_hash"].GetStringValue(),
		HitCount:       hitCount,
		CreatedAt:      time.Unix(hit.Payload["created_at"].GetIntegerValue(), 0),
		LastAccessedAt: time.Unix(hit.Payload["last_accessed_at"].GetIntegerValue(), 0),
		Similarity:     float64(hit.Score),
	}, true
}

func (sc *SemanticCache) recordHit(parent context.Context, id string, hitCount int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), config.CacheWriteTimeout)
	defer cancel()
	_, err := sc.holder.QObj.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: sc.collection,
		Payload: qdrant.NewValueMap(map[string]any{
			"hit_count":        hitCount,
			"last_accessed_at": time.Now().Unix(),
		}),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		logger.Warn("Failed to record semantic cache hit", "id", id, "error", err)
	}
}

func (sc *SemanticCache) Store(ctx context.Context, queryText string, vector []float32, documentID string, answer ragModel.StructuredAnswer, contextHash string) error {
	data, err := json.Marshal(semanticCache.StoredAnswer(answer))
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	now := time.Now().Unix()
	payload, err := qdrant.TryValueMap(map[string]any{
		"query_text":       queryText,
		documentIDField:    documentID,
		"response_data":    string(data),
		"context_hash":     contextHash,
		"hit_count":        0,
		"created_at":       now,
		"last_accessed_at": now,
	})
	if err != nil {
		return fmt.Errorf("semantic cache payload: %w", err)
	}

	_, err = sc.holder.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: sc.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("saving answer to semantic cache: %w", err)
	}
	return nil
}

// InvalidateDocument deletes by filter. Qdrant does not report how many points matched, so the
// count is taken first.
func (sc *SemanticCache) InvalidateDocument(ctx context.Context, documentID string) (int64, error) {
	return sc.deleteMatching(ctx, documentFilter(documentID))
}

func (sc *SemanticCache) PruneStale(ctx context.Context, notAccessedSince time.Time) (int64, error) {
	return sc.deleteMatching(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewRange("last_accessed_at", &qdrant.Range{Lt: qdrant.PtrOf(float64(notAccessedSince.Unix()))}),
		},
	})
}

func (sc *SemanticCache) deleteMatching(ctx context.Context, filter *qdrant.Filter) (int64, error) {
	count, err := sc.holder.QObj.Count(ctx, &qdrant.CountPoints{
		CollectionName: sc.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count semantic cache points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	_, err = sc.holder.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: sc.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("delete semantic cache points: %w", err)
	}
	return int64(count), nil
}
