package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
)

type ComplaintRepository struct {
	pool *pgxpool.Pool
}

func NewComplaintRepository(pool *pgxpool.Pool) *ComplaintRepository {
	return &ComplaintRepository{pool: pool}
}

func (r *ComplaintRepository) Create(ctx context.Context, c *model.Complaint) error {
	defer logger.DeferLogDuration("complaint.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO complaints (id, citizen_id, title, description, category, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.CitizenID, c.Title, c.Description, c.Category, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("complaintRepo.Create: %w", err)
	}
	return nil
}

func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*model.Complaint, error) {
	defer logger.DeferLogDuration("complaint.GetByID", time.Now())()
	c := &model.Complaint{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, citizen_id, title, COALESCE(description,''), category, status, assignee_id, created_at, updated_at
		 FROM complaints WHERE id = $1`, id,
	).Scan(&c.ID, &c.CitizenID, &c.Title, &c.Description, &c.Category, &c.Status, &c.AssigneeID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("complaintRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListForUser returns complaints visible to the user: citizens see their
// own, workers and admins see all.
func (r *ComplaintRepository) ListForUser(ctx context.Context, userID string, role model.Role) ([]model.Complaint, error) {
	defer logger.DeferLogDuration("complaint.ListForUser", time.Now())()
	query := `SELECT id, citizen_id, title, COALESCE(description,''), category, status, assignee_id, created_at, updated_at
	          FROM complaints`
	args := []any{}
	if role == model.RoleCitizen {
		query += ` WHERE citizen_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("complaintRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	complaints := make([]model.Complaint, 0, 32)
	for rows.Next() {
		var c model.Complaint
		if err := rows.Scan(&c.ID, &c.CitizenID, &c.Title, &c.Description, &c.Category, &c.Status, &c.AssigneeID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("complaintRepo.ListForUser scan: %w", err)
		}
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("complaintRepo.ListForUser rows: %w", err)
	}
	return complaints, nil
}

// CanAccessComplaint implements ws.RoomAuthorizer: citizens may only enter
// rooms for their own complaints, staff may enter any.
func (r *ComplaintRepository) CanAccessComplaint(ctx context.Context, complaintID, userID string, role model.Role) (bool, error) {
	if role == model.RoleWorker || role == model.RoleAdmin {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM complaints WHERE id = $1)`, complaintID,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("complaintRepo.CanAccessComplaint: %w", err)
		}
		return exists, nil
	}
	var owner bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM complaints WHERE id = $1 AND citizen_id = $2)`,
		complaintID, userID,
	).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("complaintRepo.CanAccessComplaint: %w", err)
	}
	return owner, nil
}

// AppendTimelineEvent inserts a timeline event plus its attachments and
// moves the complaint to the event's status, in one transaction. Callers
// re-read the full timeline afterwards; the server-assigned order is the
// source of truth.
func (r *ComplaintRepository) AppendTimelineEvent(ctx context.Context, ev *model.TimelineEvent) error {
	defer logger.DeferLogDuration("complaint.AppendTimelineEvent", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("complaintRepo.AppendTimelineEvent begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO timeline_events (id, complaint_id, status, notes, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.ComplaintID, ev.Status, ev.Notes, ev.ActorID, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("complaintRepo.AppendTimelineEvent insert event: %w", err)
	}
	for _, a := range ev.Attachments {
		_, err = tx.Exec(ctx,
			`INSERT INTO timeline_attachments (id, event_id, file_name, file_url, file_size)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.ID, ev.ID, a.FileName, a.FileURL, a.FileSize,
		)
		if err != nil {
			return fmt.Errorf("complaintRepo.AppendTimelineEvent insert attachment: %w", err)
		}
	}
	_, err = tx.Exec(ctx,
		`UPDATE complaints SET status = $1, updated_at = $2 WHERE id = $3`,
		ev.Status, ev.CreatedAt, ev.ComplaintID,
	)
	if err != nil {
		return fmt.Errorf("complaintRepo.AppendTimelineEvent update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("complaintRepo.AppendTimelineEvent commit: %w", err)
	}
	return nil
}

// GetTimeline returns the complaint's full timeline in server order
// (ascending creation time), attachments and actors included.
func (r *ComplaintRepository) GetTimeline(ctx context.Context, complaintID string) ([]model.TimelineEvent, error) {
	defer logger.DeferLogDuration("complaint.GetTimeline", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.complaint_id, e.status, e.notes, e.actor_id, e.created_at,
		        u.id, u.name, u.email, u.role
		 FROM timeline_events e
		 LEFT JOIN users u ON u.id = e.actor_id
		 WHERE e.complaint_id = $1
		 ORDER BY e.created_at ASC, e.id ASC`, complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("complaintRepo.GetTimeline query: %w", err)
	}
	defer rows.Close()

	events := make([]model.TimelineEvent, 0, 16)
	index := make(map[string]int)
	for rows.Next() {
		var ev model.TimelineEvent
		var actorID, actorName, actorEmail *string
		var actorRole *model.Role
		if err := rows.Scan(&ev.ID, &ev.ComplaintID, &ev.Status, &ev.Notes, &ev.ActorID, &ev.CreatedAt,
			&actorID, &actorName, &actorEmail, &actorRole); err != nil {
			return nil, fmt.Errorf("complaintRepo.GetTimeline scan: %w", err)
		}
		if actorID != nil {
			ev.Actor = &model.UserPublic{ID: *actorID, Name: *actorName, Email: *actorEmail, Role: *actorRole}
		}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("complaintRepo.GetTimeline rows: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}

	arows, err := r.pool.Query(ctx,
		`SELECT a.id, a.event_id, a.file_name, a.file_url, a.file_size
		 FROM timeline_attachments a
		 JOIN timeline_events e ON e.id = a.event_id
		 WHERE e.complaint_id = $1`, complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("complaintRepo.GetTimeline attachments query: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a model.Attachment
		if err := arows.Scan(&a.ID, &a.EventID, &a.FileName, &a.FileURL, &a.FileSize); err != nil {
			return nil, fmt.Errorf("complaintRepo.GetTimeline attachments scan: %w", err)
		}
		if i, ok := index[a.EventID]; ok {
			events[i].Attachments = append(events[i].Attachments, a)
		}
	}
	if err := arows.Err(); err != nil {
		return nil, fmt.Errorf("complaintRepo.GetTimeline attachments rows: %w", err)
	}
	return events, nil
}

// UpdateStatus changes a complaint's status directly (no timeline note).
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, id string, status model.ComplaintStatus) error {
	defer logger.DeferLogDuration("complaint.UpdateStatus", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE complaints SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("complaintRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
