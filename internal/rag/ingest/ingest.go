package ingest

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/rag/embedding"
	"github.com/akolanti/GoDocRAG/internal/rag/vectorDB"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// InvalidateFunc clears every cache tier for a document and reports how much it removed.
type InvalidateFunc func(ctx context.Context, documentID string) (keys int64, rows int64, err error)

var logger = logger_i.NewLogger("Document Reindex")

// ProcessReindex rebuilds the stored chunks of one document.
//
// Caches are invalidated before the old chunks go away and again once the new ones are
// written, so an answer cached from the old chunks while the job ran cannot survive it.
func ProcessReindex(ctx context.Context, job jobModel.Job, e embedding.Embedder, writers []vectorDB.ChunkWriter, invalidate InvalidateFunc) jobModel.Job {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", job.Id)
	payload := &job.JobPayload

	if payload.DocumentID == "" {
		return failJob(job, http.StatusBadRequest, "document id is required", false)
	}
	if payload.IngestPath != "" {
		defer removeFile(payload.IngestPath)
	}

	job.CurrentStep = jobModel.CacheInvalidation
	keys, rows, err := invalidate(ctx, payload.DocumentID)
	if err != nil {
		log.Error("Cache invalidation failed", "error", err)
		return failJob(job, http.StatusBadGateway, "Error invalidating document caches", true)
	}
	payload.InvalidatedCacheKeys, payload.InvalidatedCachedRows = keys, rows

	job.CurrentStep = jobModel.TextExtraction
	if payload.IngestPath == "" {
		if payload.SourceURL == "" {
			return failJob(job, http.StatusBadRequest, "a file upload or source_url is required", false)
		}
		path, err := downloadSource(ctx, payload.SourceURL)
		if err != nil {
			log.Error("Error downloading source document", "error", err, "url", payload.SourceURL)
			return failJob(job, http.StatusBadGateway, "Error downloading source document", true)
		}
		payload.IngestPath = path
		defer removeFile(path)
	}

	docType := getDocType(payload.IngestPath)
	if docType == commonModels.ERR {
		return failJob(job, http.StatusUnsupportedMediaType, "unsupported document type", false)
	}
	name := payload.DocumentName
	if name == "" {
		name = payload.IngestFileName
	}
	doc := commonModels.Document{
		Id:                  payload.DocumentID,
		Name:                name,
		SourceURL:           payload.SourceURL,
		LastIngestTimestamp: time.Now(),
		ContentType:         docType,
	}

	pages, err := extractText(ctx, payload.IngestPath, docType)
	if err != nil {
		log.Error("Error extracting document", "error", err)
		return failJob(job, http.StatusUnprocessableEntity, "Error extracting document content", false)
	}
	chunks := PrepareChunks(pages, doc, e.ModelName())
	if len(chunks) == 0 {
		return failJob(job, http.StatusUnprocessableEntity, "document has no extractable text", false)
	}
	log.Debug("Prepared chunks", "pages", len(pages), "chunks", len(chunks))

	job.CurrentStep = jobModel.EmbeddingAPICall
	vectors, err := EmbedChunks(ctx, chunks, e)
	if err != nil {
		log.Error("Embedding failed", "error", err)
		return failJob(job, http.StatusBadGateway, "Error embedding document chunks", true)
	}

	job.CurrentStep = jobModel.ChunkStoreWrite
	for _, w := range writers {
		if err := w.ReplaceDocumentChunks(ctx, doc, chunks, vectors); err != nil {
			log.Error("Chunk store write failed", "error", err)
			return failJob(job, http.StatusInternalServerError, "Error writing document chunks", true)
		}
	}
	payload.ChunksWritten = len(chunks)

	keys, rows, err = invalidate(ctx, payload.DocumentID)
	if err != nil {
		// the chunks are already replaced, a retry would redo all of it
		log.Warn("Post-write cache invalidation failed", "error", err)
	}
	payload.InvalidatedCacheKeys += keys
	payload.InvalidatedCachedRows += rows

	log.Info("Reindexed document", "documentId", payload.DocumentID, "chunks", len(chunks))
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func failJob(job jobModel.Job, code int, message string, retry bool) jobModel.Job {
	job.Status = jobModel.JobStatusError
	job.Error = jobModel.JobError{Code: code, Message: message, Retry: retry}
	return job
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("Error removing file", "error", err, "path", path)
	}
}
