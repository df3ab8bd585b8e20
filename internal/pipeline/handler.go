package pipeline

import (
	"log/slog"
	"net/http"

	"github.com/docsight/docsight/pkg/handlers"
)

// Handler exposes pipeline observability endpoints.
type Handler struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewHandler creates a pipeline handler.
func NewHandler(p *Pipeline, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline: p,
		logger:   logger.With("handler", "pipeline"),
	}
}

// Stats reports queued/active/completed/failed counts per stage.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{"stages": stats})
}
