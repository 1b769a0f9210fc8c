package job

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

// Service owns the queue between the HTTP handlers and the worker pool.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

var logger = logger_i.NewLogger("JobService")

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
	}
}

// Submit records j as queued and hands it to the pool. The send blocks while the buffer is full,
// so a burst of reindex requests backs up into the callers. It gives up when ctx ends.
func (s *Service) Submit(ctx context.Context, j jobModel.Job) error {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", j.Id)

	j.Status = jobModel.JobStatusQueued
	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		log.Warn("Failed to save queued job", "error", err)
	}
	metrics.IncrementJobsInQueue()

	select {
	case s.JobChannel <- j:
	case <-ctx.Done():
		metrics.DecrementJobsInQueue()
		s.JobStore.DeleteJob(context.WithoutCancel(ctx), j.Id)
		return ctx.Err()
	}

	count := atomic.AddInt64(&s.RequestCount, 1)
	log.Debug("Queued job", "requestCount", count)

	// every reindex embeds a whole document, so each one asks for a worker
	metrics.StartDispatcherSignalCount()
	select {
	case s.DispatcherChannel <- true:
	case <-ctx.Done():
	}
	return nil
}

// Status returns the last state a job was saved in.
func (s *Service) Status(ctx context.Context, id string) (jobModel.Job, bool) {
	if s == nil || s.JobStore == nil {
		return jobModel.Job{}, false
	}
	return s.JobStore.GetJob(ctx, id)
}

// SaveState persists j with the given status. Failures are logged, the job keeps running.
func (s *Service) SaveState(ctx context.Context, j jobModel.Job, status jobModel.JobStatus) jobModel.Job {
	j.Status = status
	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		logger.Error("Failed to save job state", "traceId", j.TraceId, "jobId", j.Id, "status", status, "error", err)
	}
	return j
}
