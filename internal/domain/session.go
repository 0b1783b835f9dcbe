package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTitle is used when a session is created without a title
const DefaultSessionTitle = "New Chat"

// ChatSession is one conversation thread as seen by the client
type ChatSession struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

// DisplayTitle returns the title, or a placeholder when the server sent none
func (s ChatSession) DisplayTitle() string {
	if s.Title == "" {
		return "Untitled Chat"
	}
	return s.Title
}

// SessionState is the per-session reply state tracked by the coordinator
type SessionState string

const (
	SessionIdle          SessionState = "idle"
	SessionAwaitingReply SessionState = "awaitingReply"
)

// SessionService lists and creates sessions on the backend
type SessionService interface {
	ListSessions(ctx context.Context) ([]ChatSession, error)
	CreateSession(ctx context.Context, title string) (*ChatSession, error)
}

// Chat is a conversation thread as stored by the reference backend
type Chat struct {
	ID        uuid.UUID `json:"_id"`
	UserID    uuid.UUID `json:"user"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session returns the client-facing view of the chat
func (c *Chat) Session() ChatSession {
	return ChatSession{ID: c.ID.String(), Title: c.Title}
}

// ChatRepository defines the interface for chat storage
type ChatRepository interface {
	Create(ctx context.Context, chat *Chat) error
	Get(ctx context.Context, id uuid.UUID) (*Chat, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Chat, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}
