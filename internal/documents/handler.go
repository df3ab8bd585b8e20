package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docsight/docsight/pkg/handlers"
	"github.com/docsight/docsight/pkg/pagination"
	"github.com/google/uuid"
)

// Ingestor enqueues a newly uploaded document for pipeline processing.
// Satisfied by the pipeline system.
type Ingestor interface {
	EnqueueDocument(ctx context.Context, documentID uuid.UUID, storageKey string) (string, error)
}

// Handler provides HTTP endpoints for document operations.
type Handler struct {
	sys           System
	ingestor      Ingestor
	logger        *slog.Logger
	paging        pagination.Config
	maxUploadSize int64
}

// NewHandler creates a document handler with the specified configuration.
func NewHandler(sys System, ingestor Ingestor, logger *slog.Logger, paging pagination.Config, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		ingestor:      ingestor,
		logger:        logger.With("handler", "documents"),
		paging:        paging,
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.paging)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	doc, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// uploadFormOverhead covers multipart framing and the optional name field
// on top of the file bytes.
const uploadFormOverhead = 1 << 20

// Upload accepts a multipart PDF upload, persists it, and enqueues the
// ingestion job. Non-PDF uploads are rejected before entering the pipeline.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+uploadFormOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), data)
	if contentType != "application/pdf" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotPDF)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	cmd := CreateCommand{
		Name:        name,
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   header.Size,
		Data:        data,
	}

	doc, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	jobID, err := h.ingestor.EnqueueDocument(r.Context(), doc.ID, doc.StorageKey)
	if err != nil {
		// The document row stays pending; surfacing the enqueue failure lets
		// the client retry without re-uploading the file.
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Errorf("enqueue document: %w", err))
		return
	}

	h.logger.Info("document enqueued", "id", doc.ID, "job_id", jobID)
	handlers.RespondJSON(w, http.StatusCreated, doc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PDF streams the original uploaded file.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	doc, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	data, contentType, err := h.sys.Data(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	w.Write(data)
}

func detectContentType(header string, data []byte) string {
	if header != "" && header != "application/octet-stream" {
		return header
	}
	contentType := http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType
}
