package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/logger"
	"github.com/freeeve/repower/internal/service"
	"github.com/freeeve/repower/pkg/repower"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeList writes items, or an empty array for nil.
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

// pathInt parses a numeric path segment.
func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil
}

// statusFor maps service and rule errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMatchNotFound),
		errors.Is(err, service.ErrTurnNotFound),
		errors.Is(err, service.ErrCommandNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrUnknownMap):
		return http.StatusBadRequest
	case errors.Is(err, repower.ErrNotOwner),
		errors.Is(err, repower.ErrNotInMatch),
		errors.Is(err, repower.ErrCannotKickOwner):
		return http.StatusForbidden
	case errors.Is(err, repower.ErrMatchWrongStatus),
		errors.Is(err, repower.ErrMatchFull),
		errors.Is(err, repower.ErrAlreadyJoined),
		errors.Is(err, repower.ErrAlreadyReady),
		errors.Is(err, repower.ErrPlayerInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// commandErrorBody is the 422 payload of a rejected command.
type commandErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeServiceError writes err with the status it maps to. Internal errors
// are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		l := logger.ForRequest(r.Context())
		l.Error().Err(err).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	var cerr *repower.CommandError
	if errors.As(err, &cerr) {
		writeJSON(w, status, commandErrorBody{Error: cerr.Message, Kind: string(cerr.Kind)})
		return
	}
	writeError(w, status, err.Error())
}
