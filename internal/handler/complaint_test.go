package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civicdesk/internal/config"
	"github.com/civicdesk/internal/model"
)

func timelineTestHandler() *ComplaintHandler {
	cfg := &config.Config{MaxUploadSize: 10 << 20, UploadDir: "/tmp"}
	return NewComplaintHandler(nil, nil, nil, nil, cfg)
}

func multipartBody(t *testing.T, status, notes string, attachments int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if status != "" {
		mw.WriteField("status", status)
	}
	if notes != "" {
		mw.WriteField("notes", notes)
	}
	for i := 0; i < attachments; i++ {
		part, err := mw.CreateFormFile("attachments", fmt.Sprintf("file%d.txt", i))
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write([]byte("x"))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpdateTimelineForbiddenForCitizen(t *testing.T) {
	h := timelineTestHandler()
	body, ct := multipartBody(t, "in_progress", "started", 0)

	r := httptest.NewRequest(http.MethodPut, "/api/complaints/c1/timeline", body)
	r.Header.Set("Content-Type", ct)
	r = requestWithParams(r, "u1", model.RoleCitizen, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateTimeline(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestUpdateTimelineRejectsUnknownStatus(t *testing.T) {
	h := timelineTestHandler()
	body, ct := multipartBody(t, "escalated", "note", 0)

	r := httptest.NewRequest(http.MethodPut, "/api/complaints/c1/timeline", body)
	r.Header.Set("Content-Type", ct)
	r = requestWithParams(r, "w1", model.RoleWorker, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateTimeline(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestUpdateTimelineRequiresNotes(t *testing.T) {
	h := timelineTestHandler()
	body, ct := multipartBody(t, "resolved", "   ", 0)

	r := httptest.NewRequest(http.MethodPut, "/api/complaints/c1/timeline", body)
	r.Header.Set("Content-Type", ct)
	r = requestWithParams(r, "w1", model.RoleWorker, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateTimeline(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestUpdateTimelineCapsAttachments(t *testing.T) {
	h := timelineTestHandler()
	body, ct := multipartBody(t, "resolved", "done", model.MaxTimelineAttachments+1)

	r := httptest.NewRequest(http.MethodPut, "/api/complaints/c1/timeline", body)
	r.Header.Set("Content-Type", ct)
	r = requestWithParams(r, "w1", model.RoleWorker, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateTimeline(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestUpdateStatusForbiddenForWorker(t *testing.T) {
	h := timelineTestHandler()

	r := httptest.NewRequest(http.MethodPatch, "/api/complaints/c1/status", strings.NewReader(`{"status":"closed"}`))
	r = requestWithParams(r, "w1", model.RoleWorker, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateStatus(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	h := timelineTestHandler()

	r := httptest.NewRequest(http.MethodPatch, "/api/complaints/c1/status", strings.NewReader(`{"status":"archived"}`))
	r = requestWithParams(r, "a1", model.RoleAdmin, map[string]string{"id": "c1"})
	w := httptest.NewRecorder()

	h.UpdateStatus(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}
