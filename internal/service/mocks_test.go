package service

import (
	"context"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockChatRepository mocks the ChatRepository interface
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockChatRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Chat), args.Error(1)
}

func (m *MockChatRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockMessageRepository mocks the ChatMessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByChat(ctx context.Context, chatID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, chatID, limit)
	return args.Get(0).([]domain.ChatMessage), args.Error(1)
}

// MockRateLimiter mocks the RateLimiter interface
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

// MockResponder mocks the Responder interface
type MockResponder struct {
	mock.Mock
}

func (m *MockResponder) Reply(ctx context.Context, history []domain.ChatMessage, prompt string) (string, error) {
	args := m.Called(ctx, history, prompt)
	return args.String(0), args.Error(1)
}
