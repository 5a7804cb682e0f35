// Package api provides the JSON HTTP handlers of the Boards assistant.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siddhartha-04/itcprj/internal/sprints"
)

// ChatEngine is the part of the chat engine served over plain HTTP.
type ChatEngine interface {
	Open(ctx context.Context, clientAddr string) (string, []string)
	HandleMessage(ctx context.Context, sessionID, text string) string
}

// Handler serves the sprint, search and chat endpoints.
type Handler struct {
	engine ChatEngine
	cache  *sprints.Cache
}

// NewHandler creates a new Handler.
func NewHandler(engine ChatEngine, cache *sprints.Cache) *Handler {
	return &Handler{engine: engine, cache: cache}
}

// RegisterRoutes mounts the /api routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/sprints", h.Sprints)
		r.Get("/search", h.Search)
		r.Post("/chat", h.Chat)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
