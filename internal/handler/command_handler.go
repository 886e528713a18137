package handler

import (
	"net/http"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/service"
)

// CommandHandler handles the caller's command queue for the current turn.
type CommandHandler struct {
	commandSvc *service.CommandService
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(commandSvc *service.CommandService) *CommandHandler {
	return &CommandHandler{commandSvc: commandSvc}
}

// SubmitCommand handles POST /api/v1/matches/{id}/commands
func (h *CommandHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	var spec service.CommandSpec
	if err := decodeJSON(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd, err := h.commandSvc.SubmitCommand(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()), spec)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cmd)
}

// ListCommands handles GET /api/v1/matches/{id}/commands
func (h *CommandHandler) ListCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.commandSvc.ListCommands(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, cmds)
}

// WithdrawCommand handles DELETE /api/v1/matches/{id}/commands/{order}
func (h *CommandHandler) WithdrawCommand(w http.ResponseWriter, r *http.Request) {
	order, ok := pathInt(r, "order")
	if !ok {
		writeError(w, http.StatusBadRequest, "order must be a number")
		return
	}
	if err := h.commandSvc.WithdrawCommand(r.Context(), r.PathValue("id"), auth.PlayerIDFromContext(r.Context()), order); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
