package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/GoDocRAG/internal/adapter"
	"github.com/akolanti/GoDocRAG/internal/adapter/utils"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/highlight"
	"github.com/akolanti/GoDocRAG/internal/rag"
)

var errBadBBoxes = errors.New("bboxes must be a JSON list of [x0, y0, x1, y1] boxes")

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func traceIdFrom(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.Warn("context error", "traceId", traceIdFrom(ctx), "error", ctx.Err())
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// parseBBoxParam reads the bboxes query parameter. Every box must parse.
func parseBBoxParam(raw string) ([]ragModel.BBox, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil || len(items) == 0 {
		return nil, errBadBBoxes
	}
	boxes := make([]ragModel.BBox, 0, len(items))
	for _, item := range items {
		box, ok := ragModel.ParseBBox(item)
		if !ok {
			return nil, errBadBBoxes
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func highlightStatus(err error) int {
	switch {
	case errors.Is(err, highlight.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, highlight.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryStatus(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuery), errors.Is(err, rag.ErrEmptyDocumentID):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func processNewJobData(request *http.Request, w http.ResponseWriter, documentID string, req reindexSource) {
	newJob := newJobData{
		id:           utils.GetNewUUID(),
		traceId:      traceIdFrom(request.Context()),
		documentID:   documentID,
		documentName: req.documentName,
		fileName:     req.fileName,
		filePath:     req.filePath,
		sourceURL:    req.sourceURL,
	}
	if err := CreateNewJob(request.Context(), newJob); err != nil {
		logRH.Warn("Reindex job was not queued", "traceId", newJob.traceId, "error", err)
		if newJob.filePath != "" {
			_ = os.Remove(newJob.filePath)
		}
		WriteErrorResponse(w, http.StatusServiceUnavailable, newJob.id, "Job queue is busy, try again later")
		return
	}
	res := adapter.ToInitJobResponse(newJob.id)
	writeJsonResponse(w, http.StatusAccepted, res)
}
