package handlers

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/curio-labs/curiobot/internal/api"
)

// StageRunner is a pipeline stage's long-running work.
type StageRunner interface {
	Run(ctx context.Context) error
}

// StageHandler exposes one stage's start endpoint. The stage work runs in a
// background goroutine detached from the request context, so the caller's
// fire-and-forget timeout cannot cancel it. The response reports only
// whether the run was accepted.
type StageHandler struct {
	name    string
	runner  StageRunner
	started atomic.Bool
}

func NewStageHandler(name string, runner StageRunner) *StageHandler {
	return &StageHandler{name: name, runner: runner}
}

// Start launches the stage run. A second start request while or after the
// first one ran is rejected with false.
func (h *StageHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.started.CompareAndSwap(false, true) {
		log.Printf("%s: start requested but stage already ran", h.name)
		api.Success(w, http.StatusConflict, false)
		return
	}

	go func() {
		if err := h.runner.Run(context.Background()); err != nil {
			log.Printf("%s: stage run failed: %v", h.name, err)
		}
	}()

	api.Success(w, http.StatusOK, true)
}
