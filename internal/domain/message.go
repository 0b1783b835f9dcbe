package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one entry of a session's ordered log
type Message struct {
	ID        string `json:"_id"`
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	SessionID string `json:"chatId"`
	Timestamp string `json:"timestamp"`
}

// Time parses the timestamp. The second result is false when it is missing or malformed.
func (m Message) Time() (time.Time, bool) {
	if m.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimeLabel returns the local "HH:MM" of the timestamp, or "" when it cannot be parsed
func (m Message) TimeLabel() string {
	t, ok := m.Time()
	if !ok {
		return ""
	}
	return t.Local().Format("15:04")
}

// RemoteMessage is a history record as returned by the backend.
// Field names vary between backend versions, see history.Normalize.
type RemoteMessage struct {
	ID        FlexString `json:"_id"`
	AltID     FlexString `json:"id"`
	Role      FlexString `json:"role"`
	Sender    FlexString `json:"sender"`
	Content   FlexString `json:"content"`
	Text      FlexString `json:"text"`
	Chat      FlexString `json:"chat"`
	ChatID    FlexString `json:"chatId"`
	CreatedAt FlexString `json:"createdAt"`
	Timestamp FlexString `json:"timestamp"`
	UpdatedAt FlexString `json:"updatedAt"`
}

// HistoryService fetches a session's persisted transcript
type HistoryService interface {
	ListMessages(ctx context.Context, sessionID string) ([]RemoteMessage, error)
}

// MessageRole is the role stored by the reference backend
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

// ChatMessage is a persisted turn as stored by the reference backend
type ChatMessage struct {
	ID        uuid.UUID   `json:"_id"`
	ChatID    uuid.UUID   `json:"chat"`
	UserID    uuid.UUID   `json:"user"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ChatMessageRepository defines the interface for message storage
type ChatMessageRepository interface {
	Create(ctx context.Context, message *ChatMessage) error
	ListByChat(ctx context.Context, chatID uuid.UUID, limit int) ([]ChatMessage, error)
}
