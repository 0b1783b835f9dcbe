package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyContent = errors.New("message content is empty")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrTitleTooLong = errors.New("title is too long")
)

const (
	maxTitleLength = 255

	// RateLimitedReply is sent instead of a reply when a user is throttled
	RateLimitedReply = "You are sending messages too quickly. Please wait a moment and try again."
)

// RateLimiter limits AI turns per user
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
}

// ChatService handles chats, their transcripts and AI turns
type ChatService struct {
	chats        domain.ChatRepository
	messages     domain.ChatMessageRepository
	responder    Responder
	limiter      RateLimiter
	historyLimit int
}

// NewChatService creates a new chat service
func NewChatService(
	chats domain.ChatRepository,
	messages domain.ChatMessageRepository,
	responder Responder,
	limiter RateLimiter,
	historyLimit int,
) *ChatService {
	return &ChatService{
		chats:        chats,
		messages:     messages,
		responder:    responder,
		limiter:      limiter,
		historyLimit: historyLimit,
	}
}

// ListChats returns the user's chats
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// CreateChat creates a chat owned by the user
func (s *ChatService) CreateChat(ctx context.Context, userID uuid.UUID, title string) (*domain.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	now := time.Now()
	chat := &domain.Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetChat returns the chat when it exists and belongs to the user
func (s *ChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*domain.Chat, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// ListMessages returns the chat's transcript in chronological order
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID uuid.UUID) ([]domain.ChatMessage, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByChat(ctx, chatID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// HandleUserMessage persists a user turn and produces the assistant's reply.
// A rate-limited turn is persisted and answered with a notice that is not stored.
func (s *ChatService) HandleUserMessage(ctx context.Context, userID, chatID uuid.UUID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return "", err
	}

	userMsg, err := s.appendMessage(ctx, userID, chatID, domain.RoleUser, content)
	if err != nil {
		return "", err
	}

	if s.limiter != nil {
		allowed, _, _, err := s.limiter.Allow(ctx, userID.String())
		if err != nil {
			// If rate limiter fails, allow the turn but log the error
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Rate limiter unavailable")
		} else if !allowed {
			log.Info().Str("user_id", userID.String()).Msg("AI turn rate limited")
			return RateLimitedReply, ErrRateLimited
		}
	}

	history, err := s.messages.ListByChat(ctx, chatID, s.historyLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load context: %w", err)
	}

	reply, err := s.responder.Reply(ctx, history, userMsg.Content)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	if _, err := s.appendMessage(ctx, userID, chatID, domain.RoleModel, reply); err != nil {
		return "", err
	}

	return reply, nil
}

func (s *ChatService) appendMessage(ctx context.Context, userID, chatID uuid.UUID, role domain.MessageRole, content string) (*domain.ChatMessage, error) {
	now := time.Now()
	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	if err := s.chats.Touch(ctx, chatID, now); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID.String()).Msg("Failed to touch chat")
	}
	return msg, nil
}
