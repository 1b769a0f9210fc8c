package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GoDocRAG/internal/adapter"
	"github.com/akolanti/GoDocRAG/internal/adapter/utils"
	"github.com/akolanti/GoDocRAG/internal/api"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

const maxUploadSize = 32 << 20 //32mb

// kept separate from jobModel so the handler layer does not build jobs itself
type newJobData struct {
	id           string
	traceId      string
	documentID   string
	documentName string
	fileName     string
	filePath     string
	sourceURL    string
}

type reindexSource struct {
	documentName string
	fileName     string
	filePath     string
	sourceURL    string
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a reindex job using its ID.
// @Tags         Jobs
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceIdFrom(r.Context()))

	logRH.Debug("Get Status Request", "path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostReindexHandler queues a reindex of one document.
// @Summary      Reindex a document
// @Description  Accepts either a multipart upload (document + document_name) or a JSON body with a source_url. Invalidates both cache tiers, re-embeds the document and replaces its chunks in a background job.
// @Tags         Documents
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        documentID     path      string  true   "Document ID"
// @Param        document_name  formData  string  false  "The display name of the document"
// @Param        document       formData  file    false  "The PDF or DOCX file to upload"
// @Param        request        body      api.ReindexRequest  false  "Source URL to download instead of uploading"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /documents/{documentID}/reindex [post]
func PostReindexHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	documentID := utils.GetChiURLParam(r, "documentID")
	if documentID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
		return
	}

	var (
		src     reindexSource
		errCode int
		errMsg  string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		src, errCode, errMsg = saveUpload(r)
	} else {
		src, errCode, errMsg = decodeSourceURL(r)
	}
	if errMsg != "" {
		WriteErrorResponse(w, errCode, documentID, errMsg)
		return
	}
	processNewJobData(r, w, documentID, src)
}

func decodeSourceURL(r *http.Request) (reindexSource, int, string) {
	defer r.Body.Close()
	var req api.ReindexRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return reindexSource{}, http.StatusBadRequest, "Bad Request"
	}
	if req.SourceURL == "" {
		return reindexSource{}, http.StatusBadRequest, "source_url or a document upload is required"
	}
	if !strings.HasPrefix(req.SourceURL, "http://") && !strings.HasPrefix(req.SourceURL, "https://") {
		return reindexSource{}, http.StatusBadRequest, "source_url must be http or https"
	}
	return reindexSource{documentName: req.DocumentName, sourceURL: req.SourceURL}, 0, ""
}

func saveUpload(r *http.Request) (reindexSource, int, string) {
	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory", "err", errString)
		return reindexSource{}, http.StatusInternalServerError, errString
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return reindexSource{}, http.StatusBadRequest, "File too large or bad request"
	}

	docName := r.FormValue("document_name")
	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		return reindexSource{}, http.StatusBadRequest, "Could not retrieve file"
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fileMetadata.Filename))
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		return reindexSource{}, http.StatusInternalServerError, "Storage error"
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		_ = os.Remove(tempFilePath)
		return reindexSource{}, http.StatusInternalServerError, "Write error"
	}
	return reindexSource{documentName: docName, fileName: fileMetadata.Filename, filePath: tempFilePath}, 0, ""
}
