package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siddhartha-04/itcprj/internal/chat"
	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/sprints"
)

const maxChatBody = 64 << 10

type sprintView struct {
	Name  string       `json:"name"`
	ID    string       `json:"id"`
	Path  string       `json:"path"`
	Stats domain.Stats `json:"stats"`
}

type sprintsResponse struct {
	Loaded      bool         `json:"loaded"`
	LastUpdated *time.Time   `json:"lastUpdated,omitempty"`
	Sprints     []sprintView `json:"sprints"`
	Overview    string       `json:"overview"`
}

// Sprints returns the cached sprints, current first.
func (h *Handler) Sprints(w http.ResponseWriter, _ *http.Request) {
	snap := h.cache.Snapshot()
	resp := sprintsResponse{Sprints: []sprintView{}, Overview: chat.FormatOverview(snap)}
	if snap != nil {
		resp.Loaded = true
		resp.LastUpdated = &snap.LastUpdated
		for _, b := range snap.Buckets {
			resp.Sprints = append(resp.Sprints, sprintView{Name: b.SprintName, ID: b.SprintID, Path: b.Path, Stats: b.Stats()})
		}
	}
	JSON(w, http.StatusOK, resp)
}

type searchResponse struct {
	Term  string              `json:"term"`
	Count int                 `json:"count"`
	Hits  []sprints.SearchHit `json:"hits"`
}

// Search matches q against the cached items.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		Error(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	hits := h.cache.Search(term)
	if hits == nil {
		hits = []sprints.SearchHit{}
	}
	JSON(w, http.StatusOK, searchResponse{Term: term, Count: len(hits), Hits: hits})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Chat runs one turn for HTTP clients. An empty session_id opens a new session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	if req.SessionID == "" {
		req.SessionID, _ = h.engine.Open(r.Context(), r.RemoteAddr)
		slog.Debug("Opened HTTP chat session", "session_id", req.SessionID)
	}

	reply := h.engine.HandleMessage(r.Context(), req.SessionID, req.Message)
	JSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Reply: reply})
}
