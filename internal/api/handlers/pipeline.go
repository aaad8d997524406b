package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/curio-labs/curiobot/internal/api"
	"github.com/curio-labs/curiobot/internal/pipeline"
)

type PipelineCoordinator interface {
	State() pipeline.State
	ScrapingComplete(ctx context.Context) error
	EmbeddingComplete(ctx context.Context) error
}

// PipelineHandler exposes the coordinator's completion-signal endpoints.
type PipelineHandler struct {
	coordinator PipelineCoordinator
}

func NewPipelineHandler(coordinator PipelineCoordinator) *PipelineHandler {
	return &PipelineHandler{coordinator: coordinator}
}

type StateResponse struct {
	State string `json:"state"`
}

// ScrapingComplete advances INGESTING to EMBEDDING. A stale or repeated
// signal is logged and acknowledged anyway so a retrying stage does not spin.
func (h *PipelineHandler) ScrapingComplete(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.ScrapingComplete(r.Context()); err != nil {
		log.Printf("pipeline: ignoring scraping-complete signal: %v", err)
	}
	api.Success(w, http.StatusOK, StateResponse{State: h.coordinator.State().String()})
}

// EmbeddingComplete advances EMBEDDING to SERVING.
func (h *PipelineHandler) EmbeddingComplete(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.EmbeddingComplete(r.Context()); err != nil {
		log.Printf("pipeline: ignoring embedding-complete signal: %v", err)
	}
	api.Success(w, http.StatusOK, StateResponse{State: h.coordinator.State().String()})
}

// State reports the coordinator's current position.
func (h *PipelineHandler) State(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, StateResponse{State: h.coordinator.State().String()})
}
