package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/data/redisStore"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

const jobKeyPrefix = "job:"

// RedisJobStore keeps reindex job state in its own Redis database, expiring after
// config.RedisJobStoreTTL.
type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisJobStore returns nil when Redis is unreachable.
func GetRedisJobStore(ctx context.Context, opts redisStore.Options) *RedisJobStore {
	s := redisStore.GetRedisStore(ctx, opts, config.RedisJobStore)
	if s == nil {
		return nil
	}
	return NewRedisJobStore(s)
}

func NewRedisJobStore(s *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{store: s, logger: logger_i.NewLogger("JobStore")}
}

func JobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.Id, err)
	}
	if err := s.store.Set(ctx, JobKey(job.Id), data, config.RedisJobStoreTTL); err != nil {
		return fmt.Errorf("save job %s: %w", job.Id, err)
	}
	s.logger.Debug("Saved job", "traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", job.Id, "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobID string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", jobID)

	raw, err := s.store.GetBytes(ctx, JobKey(jobID))
	switch {
	case s.store.IsNil(err):
		return job, false
	case err != nil:
		log.Warn("Job lookup failed", "error", err)
		return job, false
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error("Stored job is not valid JSON", "error", err)
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if _, err := s.store.Del(ctx, JobKey(jobID)); err != nil {
		s.logger.Error("Error deleting job", "jobId", jobID, "error", err)
	}
}
