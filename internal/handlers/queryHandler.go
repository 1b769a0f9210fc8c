package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/akolanti/GoDocRAG/internal/adapter"
	"github.com/akolanti/GoDocRAG/internal/adapter/utils"
	"github.com/akolanti/GoDocRAG/internal/api"
	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/rag"
)

type Highlighter interface {
	GetHighlightedPDF(ctx context.Context, documentURL string, page int, bboxes []ragModel.BBox) ([]byte, error)
}

var (
	ragService  rag.Service
	highlighter Highlighter
)

// InitQueryHandlers sets the services behind /query, /highlight and the document cache routes.
func InitQueryHandlers(service rag.Service, h Highlighter) {
	ragService = service
	highlighter = h
}

// QueryHandler godoc
// @Summary      Answer a question about a document
// @Description  Runs the cached retrieval and generation pipeline and returns the answer with cited sources.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request  body      api.QueryRequest   true  "Question and document scope"
// @Success      200      {object}  api.QueryResponse  "Answer, sources and timing"
// @Failure      400      {object}  api.JobResponse    "Malformed body or empty query"
// @Failure      401      {object}  api.JobResponse    "Missing or invalid API key"
// @Failure      500      {object}  api.JobResponse    "Provider failure"
// @Router       /query [post]
func QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	log := logRH.With("traceId", traceIdFrom(r.Context()))

	var req api.QueryRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error("Couldn't close the query reader", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		log.Warn("Bad query request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	if req.Query == "" || req.DocumentID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, req.DocumentID, "query and document_id are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()
	answer, timing, err := ragService.GenerateAnswer(ctx, rag.QueryRequest{
		Query:        req.Query,
		DocumentID:   req.DocumentID,
		DocumentName: req.DocumentName,
		TopK:         req.TopK,
		MinScore:     req.MinScore,
	})
	if err != nil {
		log.Error("Query failed", "documentId", req.DocumentID, "error", err)
		WriteErrorResponse(w, queryStatus(err), req.DocumentID, err.Error())
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToQueryResponse(answer, timing))
}

// HighlightHandler godoc
// @Summary      Render cited regions on a PDF page
// @Description  Fetches the PDF at doc, adds highlight annotations for each bbox (top-left origin) on page and returns the PDF.
// @Tags         Query
// @Produce      application/pdf
// @Security     ApiKeyAuth
// @Param        doc     query     string  true  "PDF URL"
// @Param        page    query     int     true  "1-based page number"
// @Param        bboxes  query     string  true  "JSON list of [x0, y0, x1, y1] boxes"
// @Success      200     {file}    binary
// @Failure      400     {object}  api.JobResponse  "Bad page or bboxes"
// @Failure      502     {object}  api.JobResponse  "PDF could not be fetched"
// @Router       /highlight [get]
func HighlightHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	q := r.URL.Query()
	doc := q.Get("doc")
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		WriteErrorResponse(w, http.StatusBadRequest, doc, "page must be a positive integer")
		return
	}
	bboxes, err := parseBBoxParam(q.Get("bboxes"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, doc, err.Error())
		return
	}

	pdf, err := highlighter.GetHighlightedPDF(r.Context(), doc, page, bboxes)
	if err != nil {
		logRH.Warn("Highlight failed", "traceId", traceIdFrom(r.Context()), "doc", doc, "error", err)
		WriteErrorResponse(w, highlightStatus(err), doc, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		logRH.Error("Error writing pdf", "error", err)
	}
}

// InvalidateHandler godoc
// @Summary      Invalidate a document's caches
// @Description  Deletes the document's tracked Redis keys and its semantic cache rows.
// @Tags         Documents
// @Produce      json
// @Security     ApiKeyAuth
// @Param        documentID  path      string  true  "Document ID"
// @Success      200         {object}  api.InvalidateResponse
// @Failure      500         {object}  api.JobResponse
// @Router       /documents/{documentID}/invalidate [post]
func InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	documentID := utils.GetChiURLParam(r, "documentID")
	if documentID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
		return
	}
	inv, err := ragService.InvalidateDocument(r.Context(), documentID)
	if err != nil {
		logRH.Error("Invalidation failed", "traceId", traceIdFrom(r.Context()), "documentId", documentID, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, documentID, err.Error())
		return
	}
	writeJsonResponse(w, http.StatusOK, api.InvalidateResponse{
		DocumentID:    documentID,
		EphemeralKeys: inv.EphemeralKeys,
		SemanticRows:  inv.SemanticRows,
	})
}
