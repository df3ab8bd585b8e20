package images

import (
	"log/slog"
	"net/http"

	"github.com/docsight/docsight/pkg/handlers"
	"github.com/google/uuid"
)

// Handler provides HTTP endpoints for image operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates an image handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "images"),
	}
}

// ListByDocument returns all page images for a document in page order.
func (h *Handler) ListByDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	imgs, err := h.sys.ListByDocument(r.Context(), documentID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	if imgs == nil {
		imgs = []Image{}
	}

	handlers.RespondJSON(w, http.StatusOK, imgs)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	img, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, img)
}

// Data streams the rendered page image bytes.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	data, contentType, err := h.sys.Data(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
