package restclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rrens/apex-chat/internal/domain"
)

var _ domain.AuthService = (*Client)(nil)

// CurrentUser performs the identity check.
// A 401 or a response without a user yields (nil, nil).
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var resp struct {
		User *domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/user", nil, &resp); err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return resp.User, nil
}

// Login authenticates with email and password. The backend answers with the
// session cookie, which the client's jar keeps for later requests.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return err
	}
	if resp.Token != "" && c.Token() == "" {
		c.SetToken(resp.Token)
	}
	return nil
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, input domain.AccountCreate) error {
	return c.do(ctx, http.MethodPost, "/auth/register", input, nil)
}

// Logout ends the session on the backend and drops the local session cookie.
// The cookie is dropped even when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:   c.cookieName,
		Path:   "/",
		MaxAge: -1,
	}})
	return err
}
