package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/GoDocRAG/internal/api"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:        string(job.Status),
		Step:          string(job.CurrentStep),
		ReindexResult: ToReindexResult(job),
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToReindexResult(job jobModel.Job) *api.ReindexResult {
	if job.JobType != jobModel.JobTypeReindex || job.JobPayload.DocumentID == "" {
		return nil
	}
	return &api.ReindexResult{
		DocumentID:            job.JobPayload.DocumentID,
		ChunksWritten:         job.JobPayload.ChunksWritten,
		InvalidatedCacheKeys:  job.JobPayload.InvalidatedCacheKeys,
		InvalidatedCachedRows: job.JobPayload.InvalidatedCachedRows,
	}
}

func ToQueryResponse(answer ragModel.StructuredAnswer, timing ragModel.Timing) api.QueryResponse {
	sources := answer.Sources
	if sources == nil {
		sources = []ragModel.Source{}
	}
	return api.QueryResponse{
		Response:   answer.Response,
		Sources:    sources,
		Similarity: answer.Similarity,
		Cached:     answer.Cached,
		Timing:     timing,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
