package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/Rrens/apex-chat/internal/domain"
)

var (
	_ domain.SessionService = (*Client)(nil)
	_ domain.HistoryService = (*Client)(nil)
)

// ListSessions returns the user's chats in server order
func (c *Client) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var resp struct {
		Chats []domain.ChatSession `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// CreateSession creates a chat with the given title
func (c *Client) CreateSession(ctx context.Context, title string) (*domain.ChatSession, error) {
	req := struct {
		Title string `json:"title"`
	}{Title: title}

	var resp struct {
		Chat *domain.ChatSession `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	if resp.Chat == nil || resp.Chat.ID == "" {
		return nil, errors.New("response did not contain a chat")
	}
	return resp.Chat, nil
}

// ListMessages returns the persisted transcript of a chat
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]domain.RemoteMessage, error) {
	var resp struct {
		Messages []domain.RemoteMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/"+url.PathEscape(sessionID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
