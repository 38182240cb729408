package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/civicdesk/internal/model"
)

// Rest talks to the portal's HTTP API. All mutations go through here;
// the rendered state arrives back over the socket or in the response
// body, never both.
type Rest struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRest(baseURL string) *Rest {
	return &Rest{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the bearer token used on every subsequent request.
func (r *Rest) SetToken(token string) { r.token = token }

func (r *Rest) Token() string { return r.token }

// envelope mirrors the server's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (r *Rest) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("rest.%s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("rest.%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("rest.%s %s: read body: %w", method, path, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("rest.%s %s: status %d", method, path, resp.StatusCode)
		}
		return fmt.Errorf("rest.%s %s: decode: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("rest.%s %s: %s", method, path, msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("rest.%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (r *Rest) postJSON(ctx context.Context, path string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("rest.postJSON %s: %w", path, err)
	}
	return r.do(ctx, http.MethodPost, path, bytes.NewReader(buf), "application/json", out)
}

// Login authenticates and installs the returned token on the client.
func (r *Rest) Login(ctx context.Context, email, password string) (model.UserPublic, error) {
	var out struct {
		Token string           `json:"token"`
		User  model.UserPublic `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := r.postJSON(ctx, "/api/auth/login", in, &out); err != nil {
		return model.UserPublic{}, err
	}
	r.token = out.Token
	return out.User, nil
}

// ChatHistory fetches the full message list for a complaint, oldest first.
func (r *Rest) ChatHistory(ctx context.Context, complaintID string) ([]model.ChatMessage, error) {
	var out struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	err := r.do(ctx, http.MethodGet, "/api/chats/"+complaintID, nil, "", &out)
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendChatMessage posts a new message. The server echoes it back over
// the complaint room, so the response carries only the new id.
func (r *Rest) SendChatMessage(ctx context.Context, complaintID, message string) error {
	in := map[string]string{"message": message}
	return r.postJSON(ctx, "/api/chats/"+complaintID, in, nil)
}

// Attachment is one file going into a timeline update.
type Attachment struct {
	Name   string
	Reader io.Reader
}

// UpdateTimeline submits a status change with notes and optional files
// and returns the authoritative timeline the server rebuilt.
func (r *Rest) UpdateTimeline(ctx context.Context, complaintID string, status model.ComplaintStatus, notes string, files []Attachment) ([]model.TimelineEvent, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("status", string(status)); err != nil {
		return nil, fmt.Errorf("rest.UpdateTimeline: %w", err)
	}
	if err := mw.WriteField("notes", notes); err != nil {
		return nil, fmt.Errorf("rest.UpdateTimeline: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("attachments", f.Name)
		if err != nil {
			return nil, fmt.Errorf("rest.UpdateTimeline: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("rest.UpdateTimeline: copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("rest.UpdateTimeline: %w", err)
	}

	var out struct {
		Timeline []model.TimelineEvent `json:"timeline"`
	}
	err := r.do(ctx, http.MethodPut, "/api/complaints/"+complaintID+"/timeline", &body, mw.FormDataContentType(), &out)
	if err != nil {
		return nil, err
	}
	return out.Timeline, nil
}

// UpdateStatus changes a complaint's status directly, without a
// timeline entry. Admin only on the server side.
func (r *Rest) UpdateStatus(ctx context.Context, complaintID string, status model.ComplaintStatus) error {
	buf, err := json.Marshal(map[string]model.ComplaintStatus{"status": status})
	if err != nil {
		return fmt.Errorf("rest.UpdateStatus: %w", err)
	}
	return r.do(ctx, http.MethodPatch, "/api/complaints/"+complaintID+"/status", bytes.NewReader(buf), "application/json", nil)
}

// Notifications fetches the caller's notification history, newest
// first. Tolerates both the wrapped {"notifications": [...]} shape and
// a bare array, since older deployments returned the latter.
func (r *Rest) Notifications(ctx context.Context) ([]model.Notification, error) {
	var raw json.RawMessage
	if err := r.do(ctx, http.MethodGet, "/api/notifications", nil, "", &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var wrapped struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Notifications != nil {
		return wrapped.Notifications, nil
	}
	var bare []model.Notification
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, fmt.Errorf("rest.Notifications: decode: %w", err)
	}
	return bare, nil
}

// MarkNotificationRead flips a single notification to read.
func (r *Rest) MarkNotificationRead(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodPatch, "/api/notifications/"+id+"/read", nil, "", nil)
}

// MarkAllNotificationsRead flips every unread notification. Safe to
// call repeatedly.
func (r *Rest) MarkAllNotificationsRead(ctx context.Context) error {
	return r.do(ctx, http.MethodPatch, "/api/notifications/read-all", nil, "", nil)
}
