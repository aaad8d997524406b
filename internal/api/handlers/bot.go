package handlers

import (
	"net/http"

	"github.com/curio-labs/curiobot/internal/api"
)

// QueryGate opens the query queue for processing.
type QueryGate interface {
	AcceptQueries()
}

// BotHandler exposes the bot service's serving-notification endpoint.
type BotHandler struct {
	gate QueryGate
}

func NewBotHandler(gate QueryGate) *BotHandler {
	return &BotHandler{gate: gate}
}

// Notify flips the queue to accepting and drains anything buffered.
// Idempotent: repeated notifications are harmless.
func (h *BotHandler) Notify(w http.ResponseWriter, r *http.Request) {
	h.gate.AcceptQueries()
	api.Success(w, http.StatusOK, "query processing started")
}
