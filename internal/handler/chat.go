package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/middleware"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/repository"
	"github.com/civicdesk/internal/ws"
)

type ChatHandler struct {
	chatRepo      *repository.ChatRepository
	complaintRepo *repository.ComplaintRepository
	notifRepo     *repository.NotificationRepository
	hub           *ws.Hub
}

func NewChatHandler(chatRepo *repository.ChatRepository, complaintRepo *repository.ComplaintRepository, notifRepo *repository.NotificationRepository, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, complaintRepo: complaintRepo, notifRepo: notifRepo, hub: hub}
}

type chatHistoryData struct {
	Messages []model.ChatMessage `json:"messages"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// GetMessages answers GET /api/chats/{complaintId}: the full ordered
// history for a complaint the caller may see.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	complaintID := chi.URLParam(r, "complaintId")
	if complaintID == "" {
		writeError(w, http.StatusBadRequest, "complaint id required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	allowed, err := h.complaintRepo.CanAccessComplaint(r.Context(), complaintID, userID, role)
	if err != nil {
		logger.Errorf("chat history access complaint=%s user=%s: %v", complaintID, userID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	messages, err := h.chatRepo.GetMessages(r.Context(), complaintID)
	if err != nil {
		logger.Errorf("chat history complaint=%s: %v", complaintID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeData(w, http.StatusOK, chatHistoryData{Messages: messages})
}

// SendMessage answers POST /api/chats/{complaintId}. The durable path:
// the message is persisted here and delivered back to viewers through the
// push channel, never echoed in the response for the sender to render.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	complaintID := chi.URLParam(r, "complaintId")
	if complaintID == "" {
		writeError(w, http.StatusBadRequest, "complaint id required")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	complaint, err := h.complaintRepo.GetByID(r.Context(), complaintID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		logger.Errorf("chat send get complaint=%s: %v", complaintID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	allowed, err := h.complaintRepo.CanAccessComplaint(r.Context(), complaintID, userID, role)
	if err != nil || !allowed {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	senderID := userID
	m := &model.ChatMessage{
		ID:          uuid.New().String(),
		ComplaintID: complaintID,
		SenderID:    &senderID,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.chatRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("chat send complaint=%s user=%s: %v", complaintID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	h.hub.BroadcastToRoom(ws.ComplaintRoom(complaintID), ws.OutgoingMessage{
		Type:    ws.EventReceiveMessage,
		Payload: m,
	})
	notifyComplaintParties(r.Context(), h.notifRepo, h.hub, complaint, userID,
		"New message on complaint \""+complaint.Title+"\"")

	writeData(w, http.StatusCreated, map[string]string{"id": m.ID})
}
