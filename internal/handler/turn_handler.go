package handler

import (
	"net/http"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/service"
)

// TurnHandler serves the live turn and the turn history of a match.
type TurnHandler struct {
	turnSvc *service.TurnService
}

// NewTurnHandler creates a TurnHandler.
func NewTurnHandler(turnSvc *service.TurnService) *TurnHandler {
	return &TurnHandler{turnSvc: turnSvc}
}

// CurrentTurn handles GET /api/v1/matches/{id}/turns/current
func (h *TurnHandler) CurrentTurn(w http.ResponseWriter, r *http.Request) {
	view, err := h.turnSvc.CurrentTurn(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListTurns handles GET /api/v1/matches/{id}/turns
func (h *TurnHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := h.turnSvc.ListTurns(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, turns)
}

// TurnCommands handles GET /api/v1/matches/{id}/turns/{number}/commands
func (h *TurnHandler) TurnCommands(w http.ResponseWriter, r *http.Request) {
	number, ok := pathInt(r, "number")
	if !ok {
		writeError(w, http.StatusBadRequest, "turn number must be a number")
		return
	}
	cmds, err := h.turnSvc.TurnCommands(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()), number)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, cmds)
}

// TurnBattles handles GET /api/v1/matches/{id}/turns/{number}/battles
func (h *TurnHandler) TurnBattles(w http.ResponseWriter, r *http.Request) {
	number, ok := pathInt(r, "number")
	if !ok {
		writeError(w, http.StatusBadRequest, "turn number must be a number")
		return
	}
	battles, err := h.turnSvc.TurnBattles(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()), number)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, battles)
}
