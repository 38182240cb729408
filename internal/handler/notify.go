package handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/repository"
	"github.com/civicdesk/internal/ws"
)

// notify persists a notification and hands it to the hub for live or
// web-push delivery. Best-effort: failures are logged, the triggering
// request is never failed on its account.
func notify(ctx context.Context, repo *repository.NotificationRepository, hub *ws.Hub, userID, message, complaintID string) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}
	if complaintID != "" {
		n.ComplaintID = &complaintID
	}
	if err := repo.Create(ctx, n); err != nil {
		logger.Errorf("notify create user=%s: %v", userID, err)
		return
	}
	hub.Notify(ctx, userID, n)
}

// notifyComplaintParties notifies everyone attached to a complaint except
// the actor: the owning citizen and the assignee, when set.
func notifyComplaintParties(ctx context.Context, repo *repository.NotificationRepository, hub *ws.Hub, c *model.Complaint, actorID, message string) {
	if c.CitizenID != actorID {
		notify(ctx, repo, hub, c.CitizenID, message, c.ID)
	}
	if c.AssigneeID != nil && *c.AssigneeID != actorID && *c.AssigneeID != c.CitizenID {
		notify(ctx, repo, hub, *c.AssigneeID, message, c.ID)
	}
}
