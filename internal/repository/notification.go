package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notif.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, message, complaint_id, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Message, n.ComplaintID, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notifRepo.Create: %w", err)
	}
	return nil
}

// GetForUser returns the user's notifications, most recent first.
func (r *NotificationRepository) GetForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notif.GetForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, complaint_id, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 200`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("notifRepo.GetForUser query: %w", err)
	}
	defer rows.Close()

	notifs := make([]model.Notification, 0, 32)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.ComplaintID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifRepo.GetForUser scan: %w", err)
		}
		notifs = append(notifs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifRepo.GetForUser rows: %w", err)
	}
	return notifs, nil
}

// MarkRead flips one notification to read. The update is scoped to the
// owner; marking an already-read notification is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	defer logger.DeferLogDuration("notif.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("notifRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification for the user. Idempotent.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	defer logger.DeferLogDuration("notif.MarkAllRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("notifRepo.MarkAllRead: %w", err)
	}
	return nil
}
