package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
)

type ChatRepository struct {
	mu    sync.RWMutex
	chats map[uuid.UUID]*domain.Chat
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		chats: make(map[uuid.UUID]*domain.Chat),
	}
}

func (r *ChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.chats[chat.ID]; exists {
		return errors.New("chat already exists")
	}

	c := *chat
	r.chats[c.ID] = &c
	return nil
}

func (r *ChatRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chats[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// ListByUser returns the user's chats, most recently active first
func (r *ChatRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.Chat{}
	for _, c := range r.chats {
		if c.UserID == userID {
			result = append(result, *c)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *ChatRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chats[id]
	if !ok {
		return errors.New("chat not found")
	}
	c.UpdatedAt = at
	return nil
}
