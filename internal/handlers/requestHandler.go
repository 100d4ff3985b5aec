package handlers

import (
	"io"
	"net/http"
	"sync"

	"github.com/anvik/docstream/internal/adapter"
	"github.com/anvik/docstream/internal/api"
	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/internal/ingest"
	"github.com/anvik/docstream/internal/search"
	"github.com/anvik/docstream/internal/status"
	"github.com/anvik/docstream/pkg/logger_i"
)

var (
	handlerInstance *Handler //private singleton
	once            sync.Once
	logRH           *logger_i.Logger
)

type Handler struct {
	producer ingest.Service
	searcher search.Service
	metadata docmodel.MetadataStore
	status   *status.Service
}

func InitHandlers(producer ingest.Service, searcher search.Service, metadata docmodel.MetadataStore, statusService *status.Service) {
	once.Do(func() {
		handlerInstance = &Handler{
			producer: producer,
			searcher: searcher,
			metadata: metadata,
			status:   statusService,
		}
		logRH = logger_i.NewLogger("RequestHandler")
		logRH.Info("Handlers initialized")
	})
}

// UploadHandler godoc
// @Summary      Upload a document
// @Description  Receives a file via multipart/form-data, stores it durably and queues it for asynchronous processing.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        document  formData  file  true  "The document to upload"
// @Success      202  {object}  api.UploadResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /upload [post]
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	content, err := io.ReadAll(fileReader)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "Read error")
		return
	}

	id, err := handlerInstance.producer.Upload(r.Context(), fileMetadata.Filename, content)
	if err != nil {
		logRH.Error("Upload failed", "filename", fileMetadata.Filename, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	writeJsonResponse(w, http.StatusAccepted, adapter.ToUploadResponse(id))
}

// SearchHandler godoc
// @Summary      Search documents
// @Description  Returns the nearest-neighbor matches for a free-text query, served from the result cache when fresh.
// @Tags         Search
// @Produce      json
// @Param        query  query  string  true  "Free-text query"
// @Success      200  {object}  api.SearchResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /search [get]
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := handlerInstance.searcher.Search(r.Context(), query)
	if err != nil {
		logRH.Error("Search failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Search failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(result))
}

// ListDocumentsHandler godoc
// @Summary      List recent documents
// @Description  Lists the ten most recently uploaded documents with their processing state.
// @Tags         Ingestion
// @Produce      json
// @Success      200  {array}  api.DocumentRecord
// @Failure      500  {object}  api.ErrorResponse
// @Router       /documents [get]
func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	documents, err := handlerInstance.metadata.ListRecent(r.Context(), 10)
	if err != nil {
		logRH.Error("List documents failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Could not list documents")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentRecords(documents))
}

// StatusHandler godoc
// @Summary      Service status
// @Description  Probes each external dependency independently and reports its health.
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  api.StatusResponse
// @Router       /status [get]
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	writeJsonResponse(w, http.StatusOK, api.StatusResponse{
		Status:   "operational",
		Services: handlerInstance.status.Report(r.Context()),
	})
}
