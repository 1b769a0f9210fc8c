package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	jobmodel "github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.ReindexJobTimeout)
	defer cancel()
	log := logger.With("traceId", job.TraceId)
	log.Debug("Processing job", "jobId", job.Id, "documentId", job.JobPayload.DocumentID)

	job.CurrentStep = jobmodel.ReindexInit
	_jobService.SaveState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeReindex:
		job = _reindexer.ReindexDocument(ctx, job)
	default:
		log.Error("Unknown job type", "jobType", job.JobType)
		job.Status = jobmodel.JobStatusError
		job.Error = jobmodel.JobError{Code: 400, Message: "unknown job type"}
	}

	job.EndTime = time.Now()
	status := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		status = jobmodel.JobStatusError
	}
	// the job store outlives the job's own deadline
	_jobService.SaveState(context.WithoutCancel(ctx), job, status)
}

func removeWorker(reason string) {
	atomic.AddInt64(&currentWorkerCount, -1)
	releaseWorker(reason)
}

// retireIdleWorker claims one slot above minWorkerCount. Concurrent idle workers cannot both
// take the pool below the minimum.
func retireIdleWorker() bool {
	for {
		n := atomic.LoadInt64(&currentWorkerCount)
		if n <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, n, n-1) {
			return true
		}
	}
}

func releaseWorker(reason string) {
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}
