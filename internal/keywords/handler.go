package keywords

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/docsight/docsight/pkg/handlers"
	"github.com/docsight/docsight/pkg/pagination"
)

var errMissingQuery = errors.New("search query is required")

// Handler provides HTTP endpoints for keyword search.
type Handler struct {
	sys    System
	logger *slog.Logger
	paging pagination.Config
}

// NewHandler creates a search handler.
func NewHandler(sys System, logger *slog.Logger, paging pagination.Config) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "search"),
		paging: paging,
	}
}

// Text searches keywords from every source kind.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, r.URL.Query().Get("q"), nil)
}

// Content searches object detections only.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, r.URL.Query().Get("object"), []Kind{KindObject})
}

// Suggestions returns distinct label and object keywords matching a term.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errMissingQuery)
		return
	}

	suggestions, err := h.sys.Suggest(r.Context(), term)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, term string, kinds []Kind) {
	if term == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errMissingQuery)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.paging)

	result, err := h.sys.Search(r.Context(), term, kinds, page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
