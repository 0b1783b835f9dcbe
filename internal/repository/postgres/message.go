package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository implements domain.ChatMessageRepository
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create inserts a new message
func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO messages (id, chat_id, user_id, role, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ChatID,
		message.UserID,
		message.Role,
		message.Content,
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListByChat returns the latest messages of a chat in chronological order
func (r *MessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, chat_id, user_id, role, content, created_at, updated_at
		FROM (
			SELECT id, chat_id, user_id, role, content, created_at, updated_at, seq
			FROM messages
			WHERE chat_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) latest
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.UserID,
			&m.Role,
			&m.Content,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}
