package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicdesk/internal/config"
	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/middleware"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/repository"
	"github.com/civicdesk/internal/ws"
)

type ComplaintHandler struct {
	complaintRepo *repository.ComplaintRepository
	chatRepo      *repository.ChatRepository
	notifRepo     *repository.NotificationRepository
	hub           *ws.Hub
	cfg           *config.Config
}

func NewComplaintHandler(complaintRepo *repository.ComplaintRepository, chatRepo *repository.ChatRepository, notifRepo *repository.NotificationRepository, hub *ws.Hub, cfg *config.Config) *ComplaintHandler {
	return &ComplaintHandler{complaintRepo: complaintRepo, chatRepo: chatRepo, notifRepo: notifRepo, hub: hub, cfg: cfg}
}

type createComplaintRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type timelineData struct {
	Timeline []model.TimelineEvent `json:"timeline"`
}

func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}
	if req.Category == "" {
		req.Category = "general"
	}

	now := time.Now().UTC()
	c := &model.Complaint{
		ID:          uuid.New().String(),
		CitizenID:   middleware.GetUserID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      model.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.complaintRepo.Create(r.Context(), c); err != nil {
		logger.Errorf("complaint create: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create complaint")
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	complaints, err := h.complaintRepo.ListForUser(r.Context(), userID, role)
	if err != nil {
		logger.Errorf("complaint list user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list complaints")
		return
	}
	writeData(w, http.StatusOK, map[string]any{"complaints": complaints})
}

func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	allowed, err := h.complaintRepo.CanAccessComplaint(r.Context(), id, userID, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}
	c, err := h.complaintRepo.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	timeline, err := h.complaintRepo.GetTimeline(r.Context(), id)
	if err != nil {
		logger.Errorf("complaint get timeline id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	c.Timeline = timeline
	writeData(w, http.StatusOK, c)
}

// UpdateTimeline answers PUT /api/complaints/{id}/timeline: a worker
// update combining a status change, mandatory notes and up to
// model.MaxTimelineAttachments binary attachments (multipart). The
// response carries the full server-ordered timeline; clients replace
// their copy wholesale.
func (h *ComplaintHandler) UpdateTimeline(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("complaint.UpdateTimeline", time.Now())()
	id := chi.URLParam(r, "id")
	role := middleware.GetRole(r.Context())
	if !role.CanUpdateTimeline() {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	status := model.ComplaintStatus(r.FormValue("status"))
	if !model.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	notes := strings.TrimSpace(r.FormValue("notes"))
	if notes == "" {
		writeError(w, http.StatusBadRequest, "notes required")
		return
	}
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["attachments"]
	}
	if len(files) > model.MaxTimelineAttachments {
		writeError(w, http.StatusBadRequest, "too many attachments")
		return
	}

	complaint, err := h.complaintRepo.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ev := &model.TimelineEvent{
		ID:          uuid.New().String(),
		ComplaintID: id,
		Status:      status,
		Notes:       notes,
		ActorID:     middleware.GetUserID(r.Context()),
		CreatedAt:   time.Now().UTC(),
	}
	for _, f := range files {
		att, err := h.saveAttachment(ev.ID, f)
		if err != nil {
			logger.Errorf("timeline attachment complaint=%s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to store attachment")
			return
		}
		ev.Attachments = append(ev.Attachments, *att)
	}

	if err := h.complaintRepo.AppendTimelineEvent(r.Context(), ev); err != nil {
		logger.Errorf("timeline append complaint=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to save update")
		return
	}

	timeline, err := h.complaintRepo.GetTimeline(r.Context(), id)
	if err != nil {
		logger.Errorf("timeline reload complaint=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load timeline")
		return
	}

	h.hub.BroadcastToRoom(ws.ComplaintRoom(id), ws.OutgoingMessage{
		Type:    ws.EventComplaintUpdated,
		Payload: ws.ComplaintUpdatedPayload{ComplaintID: id, Status: status},
	})
	notifyComplaintParties(r.Context(), h.notifRepo, h.hub, complaint, ev.ActorID,
		"Complaint \""+complaint.Title+"\" moved to "+string(status))

	writeData(w, http.StatusOK, timelineData{Timeline: timeline})
}

type updateStatusRequest struct {
	Status model.ComplaintStatus `json:"status"`
}

// UpdateStatus answers PATCH /api/complaints/{id}/status: the lighter
// direct status change for roles that carry the permission.
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	role := middleware.GetRole(r.Context())
	if !role.CanSetStatus() {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	complaint, err := h.complaintRepo.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.complaintRepo.UpdateStatus(r.Context(), id, req.Status); err != nil {
		logger.Errorf("status update complaint=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	h.hub.BroadcastToRoom(ws.ComplaintRoom(id), ws.OutgoingMessage{
		Type:    ws.EventComplaintUpdated,
		Payload: ws.ComplaintUpdatedPayload{ComplaintID: id, Status: req.Status},
	})
	notifyComplaintParties(r.Context(), h.notifRepo, h.hub, complaint, middleware.GetUserID(r.Context()),
		"Complaint \""+complaint.Title+"\" moved to "+string(req.Status))

	writeData(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

// saveAttachment copies an uploaded file into the upload dir under a
// generated name and returns its stable reference.
func (h *ComplaintHandler) saveAttachment(eventID string, f *multipart.FileHeader) (*model.Attachment, error) {
	src, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(h.cfg.UploadDir, 0755); err != nil {
		return nil, err
	}
	name := filepath.Base(f.Filename)
	stored := uuid.New().String() + filepath.Ext(name)
	dst, err := os.Create(filepath.Join(h.cfg.UploadDir, stored))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dst.Name())
		return nil, err
	}
	return &model.Attachment{
		ID:       uuid.New().String(),
		EventID:  eventID,
		FileName: name,
		FileURL:  "/uploads/" + stored,
		FileSize: size,
	}, nil
}
