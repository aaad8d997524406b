package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curio-labs/curiobot/internal/api"
	"github.com/curio-labs/curiobot/internal/api/handlers"
	"github.com/curio-labs/curiobot/internal/api/middleware"
)

const maxBodyBytes int64 = 1 * 1024 * 1024

// newRouter builds the shared middleware chain every stage listener uses.
func newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// NewCoordinatorRouter serves the pipeline completion signals.
func NewCoordinatorRouter(h *handlers.PipelineHandler) http.Handler {
	r := newRouter()
	r.Get("/state", h.State)
	r.Route("/notify", func(r chi.Router) {
		r.Post("/scraping-complete", h.ScrapingComplete)
		r.Post("/embedding-generation-complete", h.EmbeddingComplete)
	})
	return r
}

// NewScraperRouter serves the ingestion stage's start endpoint.
func NewScraperRouter(h *handlers.StageHandler) http.Handler {
	r := newRouter()
	r.Post("/scrape-start", h.Start)
	return r
}

// NewEmbedderRouter serves the embedding stage's start endpoint.
func NewEmbedderRouter(h *handlers.StageHandler) http.Handler {
	r := newRouter()
	r.Post("/embeddings-start", h.Start)
	return r
}

// NewBotRouter serves the query stage's serving notification.
func NewBotRouter(h *handlers.BotHandler) http.Handler {
	r := newRouter()
	r.Post("/notify", h.Notify)
	return r
}
