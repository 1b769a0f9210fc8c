package api

import (
	"time"

	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type ReindexResult struct {
	DocumentID            string `json:"document_id" example:"3f6c1f5e-8d1a-4c55-9a57-0f3cfe0e1b7a"`
	ChunksWritten         int    `json:"chunks_written" example:"42"`
	InvalidatedCacheKeys  int64  `json:"invalidated_cache_keys" example:"7"`
	InvalidatedCachedRows int64  `json:"invalidated_cached_rows" example:"2"`
}

type Result struct {
	Status        string         `json:"status"`
	Step          string         `json:"step,omitempty"`
	ReindexResult *ReindexResult `json:"reindex,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type QueryResponse struct {
	Response   string             `json:"response"`
	Sources    []ragModel.Source  `json:"sources"`
	Similarity *float64           `json:"similarity,omitempty"`
	Cached     ragModel.CacheTier `json:"cached,omitempty" enums:"semantic,response"`
	Timing     ragModel.Timing    `json:"timing"`
}

type InvalidateResponse struct {
	DocumentID    string `json:"document_id"`
	EphemeralKeys int64  `json:"ephemeral_keys"`
	SemanticRows  int64  `json:"semantic_rows"`
}

type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks"`
}

// requests---------------------

type QueryRequest struct {
	Query        string   `json:"query" validate:"required" example:"What are the inclusion criteria?"`
	DocumentID   string   `json:"document_id" validate:"required"`
	DocumentName string   `json:"document_name"`
	TopK         int      `json:"top_k,omitempty" example:"15"`
	MinScore     *float64 `json:"min_score,omitempty" example:"0.04"`
}

type ReindexRequest struct {
	SourceURL    string `json:"source_url" example:"https://example.com/protocol.pdf"`
	DocumentName string `json:"document_name"`
}
