package handler

import (
	"encoding/json"
	"net/http"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/middleware"
	"github.com/civicdesk/internal/push"
)

type PushHandler struct {
	sender *push.Sender
}

func NewPushHandler(sender *push.Sender) *PushHandler {
	return &PushHandler{sender: sender}
}

// VAPIDPublic serves the public key the browser needs to subscribe.
func (h *PushHandler) VAPIDPublic(w http.ResponseWriter, r *http.Request) {
	key := h.sender.PublicKey()
	if key == "" {
		http.Error(w, "push not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(key))
}

// Subscribe stores the caller's browser push subscription.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub push.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.sender.Subscribe(r.Context(), userID, sub); err != nil {
		logger.Errorf("push subscribe user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
