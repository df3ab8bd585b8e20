package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/documents"
	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/internal/keywords"
	"github.com/docsight/docsight/internal/middleware"
	"github.com/docsight/docsight/internal/pipeline"
	"github.com/docsight/docsight/pkg/handlers"
	"github.com/redis/go-redis/v9"
)

// Handlers collects the HTTP handlers registered on the router.
type Handlers struct {
	Documents *documents.Handler
	Images    *images.Handler
	Keywords  *keywords.Handler
	Pipeline  *pipeline.Handler
}

// Routes builds the router with all API endpoints and middleware applied.
// The database and Redis clients back the readiness probe.
func Routes(h Handlers, db *sql.DB, rdb *redis.Client, cfg *config.Config, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			handlers.RespondError(w, logger, http.StatusServiceUnavailable, err)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			handlers.RespondError(w, logger, http.StatusServiceUnavailable, err)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("POST /api/documents", h.Documents.Upload)
	mux.HandleFunc("GET /api/documents", h.Documents.List)
	mux.HandleFunc("GET /api/documents/{id}", h.Documents.Find)
	mux.HandleFunc("DELETE /api/documents/{id}", h.Documents.Delete)
	mux.HandleFunc("GET /api/documents/{id}/pdf", h.Documents.PDF)
	mux.HandleFunc("GET /api/documents/{id}/images", h.Images.ListByDocument)

	mux.HandleFunc("GET /api/images/{id}", h.Images.Find)
	mux.HandleFunc("GET /api/images/{id}/data", h.Images.Data)

	mux.HandleFunc("GET /api/search/text", h.Keywords.Text)
	mux.HandleFunc("GET /api/search/content", h.Keywords.Content)
	mux.HandleFunc("GET /api/search/suggestions", h.Keywords.Suggestions)

	mux.HandleFunc("GET /api/queue/stats", h.Pipeline.Stats)

	var handler http.Handler = mux
	handler = middleware.TrimSlash()(handler)
	handler = middleware.CORS(&cfg.CORS)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	return handler
}
