package chatsync

import (
	"context"
	"sync"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/socketio"
	"github.com/stretchr/testify/mock"
)

// MockAuthService mocks the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CurrentUser(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockBackend mocks the SessionService and HistoryService interfaces
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockBackend) CreateSession(ctx context.Context, title string) (*domain.ChatSession, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockBackend) ListMessages(ctx context.Context, sessionID string) ([]domain.RemoteMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RemoteMessage), args.Error(1)
}

// MockChannel mocks the live channel and keeps the registered reply handler
type MockChannel struct {
	mock.Mock

	mu      sync.Mutex
	handler socketio.ReplyHandler
}

func (m *MockChannel) Send(text, sessionID string) error {
	args := m.Called(text, sessionID)
	return args.Error(0)
}

func (m *MockChannel) SetReplyHandler(h socketio.ReplyHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Deliver simulates an inbound ai-response
func (m *MockChannel) Deliver(sessionID, text string) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(sessionID, text)
}
