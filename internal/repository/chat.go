package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Create(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, complaint_id, sender_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ComplaintID, m.SenderID, m.Body, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	return nil
}

// GetMessages returns a complaint's messages in ascending timestamp order,
// sender joined where present (system messages have no sender row).
func (r *ChatRepository) GetMessages(ctx context.Context, complaintID string) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("chat.GetMessages", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.complaint_id, m.sender_id, m.body, m.created_at,
		        u.id, u.name, u.email, u.role
		 FROM chat_messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 WHERE m.complaint_id = $1
		 ORDER BY m.created_at ASC`, complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetMessages query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, 64)
	for rows.Next() {
		var m model.ChatMessage
		var senderID, senderName, senderEmail *string
		var senderRole *model.Role
		if err := rows.Scan(&m.ID, &m.ComplaintID, &m.SenderID, &m.Body, &m.CreatedAt,
			&senderID, &senderName, &senderEmail, &senderRole); err != nil {
			return nil, fmt.Errorf("chatRepo.GetMessages scan: %w", err)
		}
		if senderID != nil {
			m.Sender = &model.UserPublic{ID: *senderID, Name: *senderName, Email: *senderEmail, Role: *senderRole}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.GetMessages rows: %w", err)
	}
	return messages, nil
}
