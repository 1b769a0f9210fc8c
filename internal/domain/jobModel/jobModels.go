package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	ReindexInit       InternalStatus = "ReindexInit"
	CacheInvalidation InternalStatus = "CacheInvalidation"
	TextExtraction    InternalStatus = "TextExtraction"
	EmbeddingAPICall  InternalStatus = "EmbeddingAPI"
	ChunkStoreWrite   InternalStatus = "ChunkStoreWrite"
	Error             InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeReindex JobType = "Reindex"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`

	// IngestPath is the local copy of the uploaded or downloaded file, removed after the job.
	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestPath     string `json:"ingest_path,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`

	ChunksWritten         int   `json:"chunks_written"`
	InvalidatedCacheKeys  int64 `json:"invalidated_cache_keys"`
	InvalidatedCachedRows int64 `json:"invalidated_cached_rows"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
