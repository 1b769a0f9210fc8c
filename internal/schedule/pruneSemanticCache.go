package schedule

import (
	"context"
	"time"

	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

// Pruner is implemented by every semantic cache backend.
type Pruner interface {
	PruneStale(ctx context.Context, notAccessedSince time.Time) (int64, error)
}

// PruneSemanticCacheJob deletes semantic cache rows not read within the retention window.
type PruneSemanticCacheJob struct {
	cache     Pruner
	retention time.Duration
	now       func() time.Time
	logger    *logger_i.Logger
}

func NewPruneSemanticCacheJob(cache Pruner, retention time.Duration) *PruneSemanticCacheJob {
	return &PruneSemanticCacheJob{
		cache:     cache,
		retention: retention,
		now:       time.Now,
		logger:    logger_i.NewLogger("Semantic Cache Retention"),
	}
}

func (j *PruneSemanticCacheJob) Name() string {
	return "prune_semantic_cache"
}

func (j *PruneSemanticCacheJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	n, err := j.cache.PruneStale(ctx, cutoff)
	if err != nil {
		return err
	}
	metrics.RecordInvalidation(metrics.CacheSemantic, n)
	j.logger.Info("Pruned stale semantic cache rows", "rows", n, "cutoff", cutoff)
	return nil
}
