package memory

import (
	"context"
	"sync"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
)

type MessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID][]domain.ChatMessage
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		messages: make(map[uuid.UUID][]domain.ChatMessage),
	}
}

func (r *MessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[message.ChatID] = append(r.messages[message.ChatID], *message)
	return nil
}

// ListByChat returns the latest limit messages in insertion order
func (r *MessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
