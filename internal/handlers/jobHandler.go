package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/job"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH.Info("Starting job handler")
	})
}

// CreateNewJob queues a reindex job. The status is pollable as soon as it returns.
func CreateNewJob(ctx context.Context, newJob newJobData) error {
	logJH.Info("To create new reindex job", "traceId", newJob.traceId, "jobId", newJob.id, "documentId", newJob.documentID)
	return handlerInstance.service.Submit(ctx, newReindexJob(newJob))
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.Status(ctxC, id)
	}
	return result, false
}

func newReindexJob(newJob newJobData) jobModel.Job {
	return jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     jobModel.JobTypeReindex,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.ReindexInit,
		JobPayload: jobModel.JobPayload{
			DocumentID:     newJob.documentID,
			DocumentName:   newJob.documentName,
			IngestFileName: newJob.fileName,
			IngestPath:     newJob.filePath,
			SourceURL:      newJob.sourceURL,
		},
	}
}
