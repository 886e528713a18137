package handler

import (
	"net/http"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/service"
)

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	notifSvc *service.NotificationService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notifSvc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifSvc: notifSvc}
}

// List handles GET /api/v1/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	items, err := h.notifSvc.List(r.Context(), auth.PlayerIDFromContext(r.Context()), unread)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, items)
}

// MarkAllRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifSvc.MarkAllRead(r.Context(), auth.PlayerIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
