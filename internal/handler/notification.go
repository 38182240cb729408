package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/middleware"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/repository"
)

type NotificationHandler struct {
	notifRepo *repository.NotificationRepository
}

func NewNotificationHandler(notifRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifRepo: notifRepo}
}

type notificationsData struct {
	Notifications []model.Notification `json:"notifications"`
}

// List answers GET /api/notifications: the caller's notifications,
// most recent first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	notifs, err := h.notifRepo.GetForUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("notification list user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	writeData(w, http.StatusOK, notificationsData{Notifications: notifs})
}

// MarkRead answers PATCH /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	err := h.notifRepo.MarkRead(r.Context(), id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		logger.Errorf("notification mark read id=%s user=%s: %v", id, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// MarkAllRead answers PATCH /api/notifications/read-all. Idempotent.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.notifRepo.MarkAllRead(r.Context(), userID); err != nil {
		logger.Errorf("notification mark all read user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark all read")
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"ok": true})
}
