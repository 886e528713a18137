package handler

import (
	"net/http"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/service"
)

// MatchHandler handles match lifecycle endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	playerID := auth.PlayerIDFromContext(r.Context())
	var req struct {
		Name  string `json:"name"`
		MapID string `json:"map_id,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.matchSvc.CreateMatch(r.Context(), req.Name, playerID, req.MapID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMatches handles GET /api/v1/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matchSvc.ListMatches(r.Context(), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, matches)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchSvc.GetMatch(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// JoinMatch handles POST /api/v1/matches/{id}/join
func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchSvc.JoinMatch(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SetPublic returns the handler for POST /api/v1/matches/{id}/public and
// POST /api/v1/matches/{id}/private.
func (h *MatchHandler) SetPublic(public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := h.matchSvc.SetPublic(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()), public)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// KickPlayer handles DELETE /api/v1/matches/{id}/players/{playerId}
func (h *MatchHandler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	by := auth.PlayerIDFromContext(r.Context())
	if err := h.matchSvc.KickPlayer(r.Context(), r.PathValue("id"), by, r.PathValue("playerId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// action adapts a service call taking (ctx, matchID, playerID) to a
// handler answering 204.
func (h *MatchHandler) action(fn func(r *http.Request, matchID, playerID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r, r.PathValue("id"), auth.PlayerIDFromContext(r.Context())); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Ready handles POST /api/v1/matches/{id}/ready. In setup it marks the seat
// ready to start; in play it ends the player's turn.
func (h *MatchHandler) Ready() http.HandlerFunc {
	return h.action(func(r *http.Request, matchID, playerID string) error {
		return h.matchSvc.Ready(r.Context(), matchID, playerID)
	})
}

// Leave handles POST /api/v1/matches/{id}/leave
func (h *MatchHandler) Leave() http.HandlerFunc {
	return h.action(func(r *http.Request, matchID, playerID string) error {
		return h.matchSvc.LeaveMatch(r.Context(), matchID, playerID)
	})
}

// Pause handles POST /api/v1/matches/{id}/pause
func (h *MatchHandler) Pause() http.HandlerFunc {
	return h.action(func(r *http.Request, matchID, playerID string) error {
		return h.matchSvc.PauseMatch(r.Context(), matchID, playerID)
	})
}

// Resume handles POST /api/v1/matches/{id}/resume
func (h *MatchHandler) Resume() http.HandlerFunc {
	return h.action(func(r *http.Request, matchID, playerID string) error {
		return h.matchSvc.ResumeMatch(r.Context(), matchID, playerID)
	})
}

// Abort handles POST /api/v1/matches/{id}/abort
func (h *MatchHandler) Abort() http.HandlerFunc {
	return h.action(func(r *http.Request, matchID, playerID string) error {
		return h.matchSvc.AbortMatch(r.Context(), matchID, playerID)
	})
}
