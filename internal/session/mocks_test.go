package session

import (
	"context"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockSessionService mocks the SessionService interface
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionService) CreateSession(ctx context.Context, title string) (*domain.ChatSession, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}
